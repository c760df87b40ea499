package storage

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is returned when a session record doesn't exist
var ErrRecordNotFound = errors.New("session record not found")

// Record is a server-side session record. The bundle is opaque serialized
// data; storage never inspects it (records are written and read whole).
type Record struct {
	ID        string    `json:"id"`
	Bundle    []byte    `json:"bundle"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record's absolute expiry has passed
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Backend persists session records when the session manager runs in server
// mode. Get must return ErrRecordNotFound for missing or expired records;
// Delete is idempotent.
type Backend interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes records past their expiry, returning the count
	DeleteExpired(ctx context.Context) (int, error)
}
