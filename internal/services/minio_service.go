package services

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores attachments and returns the location they are served from.
type Uploader interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (string, error)
	Delete(ctx context.Context, objectName string) error
	EnsureBucketExists(ctx context.Context) error
	Ping(ctx context.Context) error
}

type minioUploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioUploader creates an Uploader backed by bucket. When publicURL is
// empty, object URLs are built from the MinIO endpoint itself.
func NewMinioUploader(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (Uploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	if publicURL == "" {
		publicURL = client.EndpointURL().String()
	}
	return &minioUploader{client: client, bucket: bucket, publicURL: publicURL}, nil
}

func (m *minioUploader) Upload(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, objectSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	return objectURL(m.publicURL, m.bucket, objectName)
}

func (m *minioUploader) Delete(ctx context.Context, objectName string) error {
	return m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
}

func (m *minioUploader) EnsureBucketExists(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (m *minioUploader) Ping(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("bucket %s does not exist", m.bucket)
	}
	return nil
}

func objectURL(base, bucket, objectName string) (string, error) {
	return url.JoinPath(base, bucket, objectName)
}
