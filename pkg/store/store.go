// Package store defines the key-value contract shared by the admission gate,
// session contexts, pause flags and lead records.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("store: key not found")
	// ErrConflict is returned by Update when concurrent writers kept winning.
	ErrConflict = errors.New("store: update conflict")
)

// UpdateFunc receives the current value (nil when absent) and returns the
// value to write. Returning a nil slice deletes the key.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is a TTL-aware key-value store. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// PutIfAbsent writes value only when key does not exist. It reports
	// whether this call created the key.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Update applies fn atomically with respect to other Update calls on key.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Keys used across packages.
func DedupKey(fingerprint string) string { return "dedup:" + fingerprint }

func ContextKey(conversationID string) string { return "context:" + conversationID }

func PauseKey(conversationID string) string { return "pause:" + conversationID }

func LeadKey(id string) string { return "lead:" + id }

func LeadPhoneKey(phone, conversationID string) string {
	return "lead_phone:" + phone + ":" + conversationID
}
