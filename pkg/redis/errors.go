package redis

import "errors"

var (
	// ErrEmptyURL is returned when REDIS_URL is not set.
	ErrEmptyURL = errors.New("redis: connection url is empty")
	// ErrInvalidURL wraps the parse error of a malformed REDIS_URL.
	ErrInvalidURL = errors.New("redis: invalid connection url")
	// ErrNotReady means no ping succeeded before the retries or the
	// connect timeout ran out.
	ErrNotReady = errors.New("redis: server not ready")
	// ErrUnavailable is returned by the readiness check when the event
	// deduplication store cannot be reached.
	ErrUnavailable = errors.New("redis: dedup store unavailable")
)
