package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/civicdesk/backend/internal/config"
	"github.com/civicdesk/backend/internal/logger"
)

const presignExpiry = 24 * time.Hour

// MinIOStorage keeps complaint attachments in a single bucket.
type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	log        *slog.Logger
}

func NewMinIOStorage(ctx context.Context, cfg *config.MinIOConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinIOStorage{
		client:     client,
		bucketName: cfg.BucketName,
		log:        logger.WithComponent("storage"),
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		s.log.Info("bucket created", "bucket", cfg.BucketName)
	}

	s.log.Info("MinIO storage connected", "endpoint", cfg.Endpoint, "bucket", cfg.BucketName)
	return s, nil
}

// AttachmentObjectName builds the object key for a complaint attachment.
func AttachmentObjectName(complaintID uuid.UUID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("complaints/%s/%s%s", complaintID, uuid.New(), ext)
}

func (s *MinIOStorage) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *MinIOStorage) Delete(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// URL returns a presigned download link, or "" when signing fails.
func (s *MinIOStorage) URL(objectName string) string {
	u, err := s.client.PresignedGetObject(context.Background(), s.bucketName, objectName, presignExpiry, nil)
	if err != nil {
		s.log.Warn("failed to presign object", "object", objectName, "error", err)
		return ""
	}
	return u.String()
}

func (s *MinIOStorage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}
