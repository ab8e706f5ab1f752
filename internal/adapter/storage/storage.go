// Package storage provides domain.Storage backends for course material binaries.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"coursequiz/internal/config"
	"coursequiz/internal/domain"
	"coursequiz/internal/util"

	"go.uber.org/zap"
)

// ErrObjectNotFound marks a missing object; it is never retried.
var ErrObjectNotFound = errors.New("object not found")

// fetcher reads one object without retrying.
type fetcher interface {
	fetch(ctx context.Context, path string) ([]byte, error)
	// transient reports whether a failed fetch is worth repeating.
	transient(err error) bool
}

// RetryingStorage retries transient fetch errors and reports the final failure as a
// domain FETCH_ERROR.
type RetryingStorage struct {
	backend    fetcher
	maxRetries int
	delay      time.Duration
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.StorageConfig, logger *zap.Logger) (domain.Storage, error) {
	var backend fetcher
	switch cfg.Backend {
	case "oss":
		b, err := newOSSBackend(cfg.OSS)
		if err != nil {
			return nil, err
		}
		backend = b
	case "local":
		backend = newLocalBackend(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	return newRetrying(backend, cfg.MaxRetries, cfg.RetryDelay, logger), nil
}

func newRetrying(backend fetcher, maxRetries int, delay time.Duration, logger *zap.Logger) *RetryingStorage {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryingStorage{
		backend:    backend,
		maxRetries: maxRetries,
		delay:      delay,
		logger:     logger,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Download returns the object's bytes.
func (s *RetryingStorage) Download(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		data, err := s.backend.fetch(ctx, path)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !s.backend.transient(err) || attempt == s.maxRetries {
			break
		}
		delay := util.Backoff(attempt, s.delay, 0)
		s.logger.Warn("Transient storage error, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := s.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return nil, domain.NewFetchError(path, lastErr)
}

// isNetworkError reports timeouts and connection failures.
func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
