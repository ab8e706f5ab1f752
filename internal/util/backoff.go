package util

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base * 2^attempt plus a random jitter in [0, maxJitter).
// attempt counts from 0 for the first retry.
func Backoff(attempt int, base, maxJitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	d := base << attempt
	if maxJitter > 0 {
		d += rand.N(maxJitter)
	}
	return d
}
