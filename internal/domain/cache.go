package domain

import (
	"context"
	"time"
)

// CacheError represents an error originating from the cache.
type CacheError string

func (e CacheError) Error() string {
	return string(e)
}

// ErrCacheMiss is returned when a key is not found in the cache.
const ErrCacheMiss = CacheError("cache: key not found")

// Cache is the key/value port used for chunk caching, quiz lists and task status.
type Cache interface {
	// Get returns ErrCacheMiss if the key is not found.
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites key. An expiration of 0 keeps the item indefinitely.
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	Ping(ctx context.Context) error

	// HGet returns ErrCacheMiss if the field is not set.
	HGet(ctx context.Context, key, field string) (string, error)

	// HGetAll returns ErrCacheMiss if the hash does not exist.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	HSet(ctx context.Context, key string, field string, value string) error

	// HSetFields writes several fields of one hash in a single round trip.
	HSetFields(ctx context.Context, key string, fields map[string]string) error

	Expire(ctx context.Context, key string, expiration time.Duration) error
}
