package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key does not exist or has expired.
	ErrNotFound = errors.New("session: key not found")
	// ErrUnavailable indicates the backing store could not be reached.
	// Readers degrade to safe defaults; writers propagate it.
	ErrUnavailable = errors.New("session: store unavailable")
)

// Store is the key-value contract backing ephemeral session and
// access-control state. Keys are namespaced strings; expiry is enforced by
// the store itself, never by application logic.
type Store interface {
	// SetWithTTL writes a value that expires after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Set writes a value without expiry.
	Set(ctx context.Context, key, value string) error
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
