package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"coursequiz/internal/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// ossBackend reads objects from an Aliyun OSS bucket.
type ossBackend struct {
	bucket *oss.Bucket
}

func newOSSBackend(cfg config.OSSConfig) (*ossBackend, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open OSS bucket %s: %w", cfg.Bucket, err)
	}
	return &ossBackend{bucket: bucket}, nil
}

func (b *ossBackend) fetch(ctx context.Context, key string) ([]byte, error) {
	body, err := b.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if isOSSNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OSS object %s: %w", key, err)
	}
	return data, nil
}

func isOSSNotFound(err error) bool {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound
	}
	return false
}

// transient covers network failures, throttling and server-side errors.
func (b *ossBackend) transient(err error) bool {
	if errors.Is(err, ErrObjectNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusTooManyRequests || svcErr.StatusCode >= 500
	}
	return isNetworkError(err) || errors.Is(err, io.ErrUnexpectedEOF)
}
