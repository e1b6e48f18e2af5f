// Package objectstore scopes an S3-compatible object store to individual
// users and exposes the four operations the vault's file routes need:
// listing, deletion, presigned retrieval, and browser-uploadable POST
// policies.
package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// defaultMinUploadBytes and defaultMaxUploadBytes bound the size of a
// browser upload accepted via a POST policy: large enough to reject
// accidental empty uploads, small enough to keep this a store for "small
// personal files" rather than a general blob service.
const (
	defaultMinUploadBytes = 10
	defaultMaxUploadBytes = 1_048_576
)

// FileDescriptor is one entry of a user's file listing.
type FileDescriptor struct {
	Filename string
	Checksum string
	Size     int64
	URL      string
}

// Adapter scopes a Provider to one bucket and a set of S3 credentials, and
// builds the higher-level operations (list, remove, presign, post-policy)
// on top of the four primitives.
type Adapter struct {
	provider Provider

	bucket          string
	region          string
	accessKeyID     string
	secretAccessKey string

	presignedTTL time.Duration

	minUploadBytes uint64
	maxUploadBytes uint64
}

// Config carries everything the Adapter needs to construct requests and
// sign POST policies.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PresignedTTL    time.Duration

	// MinUploadBytes/MaxUploadBytes override the default content-length
	// range; zero values fall back to the defaults above.
	MinUploadBytes uint64
	MaxUploadBytes uint64
}

// NewAdapter builds an Adapter over the given Provider.
func NewAdapter(provider Provider, cfg Config) *Adapter {
	minBytes := cfg.MinUploadBytes
	if minBytes == 0 {
		minBytes = defaultMinUploadBytes
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxUploadBytes
	}

	return &Adapter{
		provider:        provider,
		bucket:          cfg.Bucket,
		region:          cfg.Region,
		accessKeyID:     cfg.AccessKeyID,
		secretAccessKey: cfg.SecretAccessKey,
		presignedTTL:    cfg.PresignedTTL,
		minUploadBytes:  minBytes,
		maxUploadBytes:  maxBytes,
	}
}

// List returns every object belonging to username, each carrying a
// presigned retrieve URL. Per-object ETag resolution (falling back to a
// HEAD request when the listing omits it) runs concurrently; any single
// object's failure fails the whole call, so callers never see a partial
// listing.
func (a *Adapter) List(ctx context.Context, username string) ([]FileDescriptor, error) {
	objects, err := a.provider.ListPrefix(ctx, a.bucket, userPrefix(username))
	if err != nil {
		return nil, fmt.Errorf("cannot retrieve files list: %w", err)
	}

	descriptors := make([]FileDescriptor, len(objects))

	group, gctx := errgroup.WithContext(ctx)
	for i, obj := range objects {
		i, obj := i, obj
		if obj.Key == "" {
			continue
		}

		group.Go(func() error {
			etag := obj.ETag
			if etag == "" {
				var err error
				etag, err = a.provider.Head(gctx, a.bucket, obj.Key)
				if err != nil {
					return fmt.Errorf("cannot retrieve object metadata for %q: %w", obj.Key, err)
				}
			}

			presigned, err := a.provider.PresignGet(gctx, a.bucket, obj.Key, a.presignedTTL)
			if err != nil {
				return fmt.Errorf("cannot build retrieve url for %q: %w", obj.Key, err)
			}

			filename, ok := splitObjectKey(username, obj.Key)
			if !ok {
				return fmt.Errorf("object key %q does not match user prefix", obj.Key)
			}

			descriptors[i] = FileDescriptor{
				Filename: filename,
				Checksum: etag,
				Size:     obj.Size,
				URL:      presigned,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return descriptors, nil
}

// Remove deletes a user's object. Deleting an object that is already absent
// still reports success — the operation is idempotent from the caller's
// point of view.
func (a *Adapter) Remove(ctx context.Context, username, filename string) error {
	key := buildObjectKey(username, filename)

	if err := a.provider.Delete(ctx, a.bucket, key); err != nil {
		return fmt.Errorf("cannot delete file: %w", err)
	}
	return nil
}

// PresignedGetURL returns a SigV4-signed GET URL for key, valid for the
// adapter's configured presigned TTL.
func (a *Adapter) PresignedGetURL(ctx context.Context, key string) (string, error) {
	url, err := a.provider.PresignGet(ctx, a.bucket, key, a.presignedTTL)
	if err != nil {
		return "", fmt.Errorf("cannot build retrieve url: %w", err)
	}
	return url, nil
}

// PostPolicyResult bundles everything a browser upload form needs.
type PostPolicyResult struct {
	UploadURL   string
	RetrieveURL string
	FormData    map[string]string
}

// PostPolicy builds a browser-uploadable POST policy scoping the upload to
// exactly the key `users/{username}/{filename}`.
func (a *Adapter) PostPolicy(ctx context.Context, username, filename string) (*PostPolicyResult, error) {
	key := buildObjectKey(username, filename)

	retrieveURL, err := a.PresignedGetURL(ctx, key)
	if err != nil {
		return nil, err
	}

	formData, err := NewPostPolicy().
		SetBucketName(a.bucket).
		SetRegion(a.region).
		SetAccessKeyID(a.accessKeyID).
		SetSecretAccessKey(a.secretAccessKey).
		SetKey(key).
		SetContentLengthRange(a.minUploadBytes, a.maxUploadBytes).
		SetExpiration(time.Now().Add(a.presignedTTL)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("cannot generate policy data form: %w", err)
	}

	uploadURL, err := uploadURLFromRetrieveURL(retrieveURL, a.bucket)
	if err != nil {
		return nil, fmt.Errorf("cannot generate policy data form: %w", err)
	}

	return &PostPolicyResult{
		UploadURL:   uploadURL,
		RetrieveURL: retrieveURL,
		FormData:    formData,
	}, nil
}

// uploadURLFromRetrieveURL derives the virtual-hosted-style upload endpoint
// "{scheme}://{bucket}.{host}[:port]" from a presigned GET URL, prepending
// "{bucket}." only if the host doesn't already carry it.
func uploadURLFromRetrieveURL(retrieveURL, bucket string) (string, error) {
	parsed, err := url.Parse(retrieveURL)
	if err != nil {
		return "", fmt.Errorf("cannot parse retrieve url: %w", err)
	}

	host := parsed.Host
	if !strings.HasPrefix(host, bucket+".") {
		host = bucket + "." + host
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, host), nil
}
