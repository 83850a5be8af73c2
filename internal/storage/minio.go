package storage

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const presignExpiry = 7 * 24 * time.Hour

// MinioPublisher uploads videos to an S3-compatible bucket and returns a
// presigned download URL.
type MinioPublisher struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioPublisher(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioPublisher, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioPublisher{client: client, bucket: bucket, prefix: "videos"}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioPublisher) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	log.Printf("[Storage] Bucket %s created", m.bucket)
	return nil
}

func (m *MinioPublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	objectName := path.Join(m.prefix, name)

	_, err := m.client.FPutObject(ctx, m.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}

	presigned, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign url: %w", err)
	}

	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[Storage] Failed to remove uploaded file %s: %v", localPath, err)
	}
	return presigned.String(), nil
}
