package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config configures the production Provider backed by an S3-compatible
// service. It works against AWS S3 itself or any compatible server (MinIO,
// SeaweedFS, ...) reachable through Endpoint.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// S3Provider implements Provider against the AWS SDK for Go v2 S3 client.
type S3Provider struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Provider resolves credentials (explicit if given, falling back to
// the SDK's default chain) and constructs a client scoped to cfg.Endpoint,
// mirroring the 200ms credential-resolution timeout the source system used
// for its own credential chain.
func NewS3Provider(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve S3 credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Provider{
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (p *S3Provider) ListPrefix(ctx context.Context, bucket, prefix string) ([]ObjectSummary, error) {
	var summaries []ObjectSummary

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot retrieve files list: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			summary := ObjectSummary{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.ETag != nil {
				summary.ETag = aws.ToString(obj.ETag)
			}
			if obj.LastModified != nil {
				summary.LastModified = *obj.LastModified
			}
			summaries = append(summaries, summary)
		}
	}

	return summaries, nil
}

func (p *S3Provider) Head(ctx context.Context, bucket, key string) (string, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("cannot retrieve object metadata: %w", err)
	}
	return aws.ToString(out.ETag), nil
}

func (p *S3Provider) Delete(ctx context.Context, bucket, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("cannot delete file: %w", err)
	}
	return nil
}

func (p *S3Provider) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("cannot build presigned url: %w", err)
	}
	return req.URL, nil
}

// isNotFound treats a "no such key" response as success: deletion is
// idempotent, so an object that is already absent is not an error.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
