package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/resilience"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Storage keeps archives and results in an S3-compatible bucket.
type Storage struct {
	client   *minio.Client
	bucket   string
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	s := &Storage{client: client, bucket: cfg.Bucket, executor: executor}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Save streams data with an unknown size as a multipart upload.
// Non-seekable bodies are sent once without retry.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	put := func(ctx context.Context) error {
		if seeker, ok := data.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		_, err := s.client.PutObject(ctx, s.bucket, key, data, -1, minio.PutObjectOptions{
			ContentType: contentType(key),
		})
		return err
	}

	var err error
	if _, ok := data.(io.Seeker); ok && s.executor != nil {
		err = s.executor.Execute(ctx, "minio.put", put, classifyMinioError)
	} else {
		err = put(ctx)
	}
	if err != nil {
		return wrapMinioError("put object", err)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := resilience.Do(ctx, s.executor, "minio.get", func(ctx context.Context) (*minio.Object, error) {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		// GetObject is lazy; Stat surfaces a missing key before the caller starts reading.
		if _, err := obj.Stat(); err != nil {
			_ = obj.Close()
			return nil, err
		}
		return obj, nil
	}, classifyMinioError)
	if err != nil {
		return nil, wrapMinioError("get object", err)
	}
	return obj, nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".zip"):
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

func classifyMinioError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.Code == "NoSuchKey", resp.Code == "NoSuchBucket":
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
}

func wrapMinioError(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey":
		return domain.WrapError(domain.ErrJobNotFound, op, err)
	case classifyMinioError(err).Retryable, resilience.IsCircuitOpen(err):
		return domain.WrapError(domain.ErrTemporary, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
