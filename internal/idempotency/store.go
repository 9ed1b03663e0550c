package idempotency

import (
	"context"
	"time"
)

// Record is a stored HTTP response replayed for repeated requests with the same key.
// A record with a zero Status is a reservation held while the first request runs.
type Record struct {
	Key         string    `json:"key"`
	BodyHash    string    `json:"bodyHash"`
	Status      int       `json:"status"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Pending reports whether the record is a reservation without a response yet.
func (r Record) Pending() bool {
	return r.Status == 0
}

// Store persists records for a bounded time.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	// Reserve writes rec only if no live record exists for its key and reports whether it did.
	Reserve(ctx context.Context, rec Record, ttl time.Duration) (bool, error)
	// Save replaces the record for rec.Key.
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}
