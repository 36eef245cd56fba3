package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Sink writes files to an S3-compatible bucket.
type S3Sink struct {
	client *minio.Client
	bucket string
}

type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewS3Sink(opts S3Options) (*S3Sink, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &S3Sink{client: client, bucket: opts.Bucket}, nil
}

func (s *S3Sink) Exists(ctx context.Context, dest string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, dest, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat s3://%s/%s: %w", s.bucket, dest, err)
}

func (s *S3Sink) Write(ctx context.Context, dest string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, dest, r, size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, dest, err)
	}
	return nil
}
