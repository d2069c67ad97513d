// Package storage provides the in-memory key-value store.
//
// MemoryStorage keeps every key in one map behind one mutex. Each key may
// carry an absolute deadline taken from the store's Clock; an entry whose
// deadline has passed is treated as absent and removed by the Get or Keys
// call that notices it. There is no background sweeper.
//
// Basic usage:
//
//	store := storage.NewMemory()
//	ttl := 50 * time.Millisecond
//	store.SetWithTTL("session", []byte("abc"), &ttl)
//	value, ok := store.Get("session")
package storage
