package adapters

import (
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mwantia/docstore/changelog"
)

// S3Config configures the S3-compatible snapshot upload.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix of every object key (default: "changelog")
	Prefix string
}

// S3 uploads every snapshot file to a bucket.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3(config *S3Config) (*S3, error) {
	if config == nil || config.Endpoint == "" || config.Bucket == "" {
		return nil, fmt.Errorf("s3 adapter requires endpoint and bucket")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "changelog"
	}

	return &S3{
		client: client,
		bucket: config.Bucket,
		prefix: prefix,
	}, nil
}

func (*S3) Name() string {
	return "s3"
}

// Open verifies that the configured bucket exists.
func (sa *S3) Open(ctx context.Context) error {
	exists, err := sa.client.BucketExists(ctx, sa.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket '%s' does not exist", sa.bucket)
	}
	return nil
}

func (sa *S3) Notify(ctx context.Context, snapshot changelog.Snapshot) error {
	_, err := sa.client.FPutObject(ctx, sa.bucket, sa.objectKey(snapshot.Name), snapshot.Path, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
		UserMetadata: map[string]string{
			"changes": fmt.Sprintf("%d", snapshot.Changes),
		},
	})
	return err
}

func (sa *S3) Close() error {
	return nil
}

func (sa *S3) objectKey(name string) string {
	return path.Join(sa.prefix, name)
}
