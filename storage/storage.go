package storage

import (
	"time"
)

// Storage defines the interface for data storage operations
type Storage interface {
	// String operations
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, expiry *time.Time)
	SetWithTTL(key string, value []byte, ttl *time.Duration)

	// Keys returns every live key, evicting expired ones on the way
	Keys() []string

	// Load inserts a batch of entries in a single critical section
	Load(entries []Entry) error

	// KeyCount returns the number of stored entries, expired or not
	KeyCount() int
}

// StorageObserver provides hooks for storage events.
// Hooks run while the store lock is held and must not call back into
// the store.
type StorageObserver interface {
	OnKeySet(key string, value []byte)
	OnKeyExpired(key string)
}

// Clock supplies the current time used for expiry deadlines
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Now returns time.Now, which carries a monotonic clock reading
func (realClock) Now() time.Time {
	return time.Now()
}

// RealClock returns the wall clock backed by time.Now
func RealClock() Clock {
	return realClock{}
}
