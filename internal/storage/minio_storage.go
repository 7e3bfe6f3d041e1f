package storage

import (
	"artsheets/internal/config"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIOStorage connects to a MinIO server and creates the bucket when missing.
func NewMinIOStorage(cfg config.Config) (Storage, error) {
	endpoint := strings.TrimSpace(cfg.StorageMinIOEndpoint)
	if endpoint == "" {
		return nil, errors.New("storage: missing MinIO endpoint")
	}
	bucket := strings.TrimSpace(cfg.StorageMinIOBucket)
	if bucket == "" {
		return nil, errors.New("storage: missing MinIO bucket")
	}
	accessKey := strings.TrimSpace(cfg.StorageMinIOAccessKeyID)
	secretKey := strings.TrimSpace(cfg.StorageMinIOSecretAccessKey)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("storage: missing MinIO credentials")
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	region := strings.TrimSpace(cfg.StorageMinIORegion)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: cfg.StorageMinIOUseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check MinIO bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("storage: create MinIO bucket: %w", err)
		}
	}

	return &minioStorage{
		client: client,
		bucket: bucket,
		prefix: trimPrefix(cfg.StorageMinIOPrefix),
	}, nil
}

func (s *minioStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	key := objectKey(s.prefix, opts)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: detectContentType(opts.Extension),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

func (s *minioStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

var _ Storage = (*minioStorage)(nil)
