package storage

import (
	"sort"
	"sync"
	"time"
)

// MemoryStorage implements Storage with one map guarded by one mutex.
// Expired entries are removed lazily by the operation that observes them.
type MemoryStorage struct {
	mu        sync.Mutex
	data      map[string]*Value
	clock     Clock
	observers []StorageObserver
}

// MemoryOption is a function that configures a MemoryStorage instance
type MemoryOption func(*MemoryStorage)

// WithClock sets the clock used for expiry deadlines
func WithClock(clock Clock) MemoryOption {
	return func(s *MemoryStorage) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithObserver registers an observer for storage events
func WithObserver(observer StorageObserver) MemoryOption {
	return func(s *MemoryStorage) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// NewMemory creates a new in-memory storage instance
func NewMemory(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		data:  make(map[string]*Value),
		clock: RealClock(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get retrieves a value by key
func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, exists := s.data[key]
	if !exists {
		return nil, false
	}

	if value.IsExpired(s.clock.Now()) {
		s.evictLocked(key)
		return nil, false
	}

	result := make([]byte, len(value.Data))
	copy(result, value.Data)
	return result, true
}

// Set stores a value, replacing both the data and the deadline of any
// previous entry. A nil expiry means the key never expires.
func (s *MemoryStorage) Set(key string, value []byte, expiry *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setLocked(key, value, expiry)
}

// SetWithTTL stores a value that expires ttl after now. A nil ttl means
// the key never expires.
func (s *MemoryStorage) SetWithTTL(key string, value []byte, ttl *time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiry *time.Time
	if ttl != nil {
		deadline := s.clock.Now().Add(*ttl)
		expiry = &deadline
	}
	s.setLocked(key, value, expiry)
}

// Keys returns the sorted list of live keys
func (s *MemoryStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	keys := make([]string, 0, len(s.data))
	for key, value := range s.data {
		if value.IsExpired(now) {
			s.evictLocked(key)
			continue
		}
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}

// Load inserts all entries under one lock acquisition
func (s *MemoryStorage) Load(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.setLocked(e.Key, e.Value, e.Expiry)
	}
	return nil
}

// KeyCount returns the number of stored entries
func (s *MemoryStorage) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data)
}

func (s *MemoryStorage) setLocked(key string, value []byte, expiry *time.Time) {
	v := &Value{
		Data: append([]byte(nil), value...),
	}
	if expiry != nil {
		deadline := *expiry
		v.Expiry = &deadline
	}
	s.data[key] = v

	for _, observer := range s.observers {
		observer.OnKeySet(key, v.Data)
	}
}

func (s *MemoryStorage) evictLocked(key string) {
	delete(s.data, key)

	for _, observer := range s.observers {
		observer.OnKeyExpired(key)
	}
}
