package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LocalProvider is a local-filesystem implementation of Provider. It exists
// to satisfy the substitutability requirement on the object-store backend
// (any implementer of the four primitives must be swappable for the
// production S3 client) and backs this package's own tests without a live
// S3-compatible endpoint.
//
// Objects are stored as plain files under basePath, with "/" in an object
// key mapped directly to nested directories — the same layout bucket keys
// already imply. Writes land via a temp-file-then-rename sequence so a
// concurrent reader never observes a partially written object.
type LocalProvider struct {
	basePath string
	baseURL  string
}

// NewLocalProvider roots a LocalProvider at basePath (created if absent).
// baseURL is the scheme+host prefix PresignGet returns URLs under, e.g.
// "http://127.0.0.1:9000".
func NewLocalProvider(basePath, baseURL string) (*LocalProvider, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalProvider{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// PutObject writes data under key, for tests to seed fixtures. Not part of
// the Provider interface — the production S3 adapter never writes objects,
// clients upload directly to the store via the POST policy.
func (p *LocalProvider) PutObject(bucket, key string, data []byte) error {
	path, err := p.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

func (p *LocalProvider) objectPath(bucket, key string) (string, error) {
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(p.basePath, bucket, filepath.FromSlash(key)), nil
}

func (p *LocalProvider) ListPrefix(_ context.Context, bucket, prefix string) ([]ObjectSummary, error) {
	root := filepath.Join(p.basePath, bucket, filepath.FromSlash(prefix))

	var summaries []ObjectSummary
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(filepath.Join(p.basePath, bucket), path)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		sum := md5.Sum(data)
		summaries = append(summaries, ObjectSummary{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			ETag:         hex.EncodeToString(sum[:]),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot retrieve files list: %w", err)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Key < summaries[j].Key })
	return summaries, nil
}

func (p *LocalProvider) Head(_ context.Context, bucket, key string) (string, error) {
	path, err := p.objectPath(bucket, key)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("cannot retrieve object metadata: %w", os.ErrNotExist)
		}
		return "", fmt.Errorf("cannot retrieve object metadata: %w", err)
	}

	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

func (p *LocalProvider) Delete(_ context.Context, bucket, key string) error {
	path, err := p.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot delete file: %w", err)
	}
	return nil
}

func (p *LocalProvider) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	expires := time.Now().Add(ttl).Unix()
	escaped := (&url.URL{Path: key}).EscapedPath()
	return fmt.Sprintf("%s/%s/%s?expires=%d", p.baseURL, bucket, escaped, expires), nil
}
