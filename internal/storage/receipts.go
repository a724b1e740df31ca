package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/smallbiznis/expenseflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const presignTTL = time.Hour

var ErrNotFound = errors.New("receipt_not_found")

// ReceiptStore keeps expense receipts in object storage. Expenses hold only
// the object key; the file itself never touches the database.
type ReceiptStore interface {
	Upload(ctx context.Context, companyID string, filename string, size int64, reader io.Reader) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

var Module = fx.Module("storage",
	fx.Provide(NewMinioReceiptStore),
)

type MinioReceiptStore struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

func NewMinioReceiptStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (ReceiptStore, error) {
	if cfg.MinioEndpoint == "" {
		logger.Warn("minio endpoint not configured, receipt storage disabled")
		return nil, nil
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	store := &MinioReceiptStore{
		client: client,
		bucket: cfg.MinioBucket,
		log:    logger.Named("storage.receipts"),
	}

	lc.Append(fx.Hook{
		OnStart: store.ensureBucket,
	})

	return store, nil
}

func (s *MinioReceiptStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	s.log.Info("receipt bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Upload stores the receipt under a key namespaced by company and randomized
// by uuid, keeping caller-supplied names out of object paths.
func (s *MinioReceiptStore) Upload(ctx context.Context, companyID string, filename string, size int64, reader io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("%s/%s%s", companyID, uuid.NewString(), ext)

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(ext),
	})
	if err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}

	s.log.Info("receipt uploaded", zap.String("key", key), zap.Int64("size", size))
	return key, nil
}

func (s *MinioReceiptStore) PresignedURL(ctx context.Context, key string) (string, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat receipt: %w", err)
	}

	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign receipt: %w", err)
	}
	return url.String(), nil
}

func (s *MinioReceiptStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
