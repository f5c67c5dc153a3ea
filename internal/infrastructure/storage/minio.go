package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PresignTTL time.Duration
}

// MinioStore keeps room files in an S3-compatible bucket and hands out presigned links.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure || cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}

	ttl := cfg.PresignTTL
	if ttl < domain.RoomTTL {
		ttl = domain.RoomTTL
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, presignTTL: ttl}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (domain.StoredObject, error) {
	if size > domain.MaxFileSize {
		return domain.StoredObject{}, domain.ErrFileTooLarge
	}

	body := r
	if size < 0 {
		// One byte past the limit is enough to tell an oversized stream apart.
		body = io.LimitReader(r, domain.MaxFileSize+1)
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return domain.StoredObject{}, fmt.Errorf("put object %s: %w", key, err)
	}

	if info.Size > domain.MaxFileSize {
		_ = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
		return domain.StoredObject{}, domain.ErrFileTooLarge
	}

	lastModified := info.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now()
	}

	return s.describe(ctx, key, info.Size, lastModified)
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	var objects []domain.StoredObject

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, obj.Err)
		}

		stored, err := s.describe(ctx, obj.Key, obj.Size, obj.LastModified)
		if err != nil {
			return nil, err
		}
		objects = append(objects, stored)
	}

	return objects, nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) PresignPut(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, s.presignTTL)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return u.String(), nil
}

// describe attaches an inline link and an attachment link to an object.
func (s *MinioStore) describe(ctx context.Context, key string, size int64, lastModified time.Time) (domain.StoredObject, error) {
	view, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return domain.StoredObject{}, fmt.Errorf("presign get %s: %w", key, err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", ContentDisposition(key))
	download, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, params)
	if err != nil {
		return domain.StoredObject{}, fmt.Errorf("presign download %s: %w", key, err)
	}

	return domain.StoredObject{
		Key:          key,
		Size:         size,
		LastModified: lastModified,
		URL:          view.String(),
		DownloadURL:  download.String(),
	}, nil
}
