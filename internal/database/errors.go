package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a job, event, or notification does not exist.
// A ping or sweep racing a delete sees this (or a no-op), never a partial
// record.
var ErrNotFound = errors.New("not found")

// ErrDuplicateName is returned by CreateJob when a job with the same name
// already exists. Name uniqueness is enforced by the store (unique index on
// Mongo, a scan under the lock in memory).
var ErrDuplicateName = errors.New("job name already exists")

// ErrUnavailable marks a transient store failure. Callers that must not drop
// work (the ping ingestor, the sweeper's due scan) retry with backoff when a
// returned error matches it.
var ErrUnavailable = errors.New("store unavailable")

// unavailable wraps a driver error so callers can both read the cause and
// match ErrUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
}
