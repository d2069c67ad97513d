package storage

import "time"

// Value represents a stored byte-string with an optional deadline
type Value struct {
	Data   []byte
	Expiry *time.Time
}

// IsExpired reports whether the deadline has been reached at now
func (v *Value) IsExpired(now time.Time) bool {
	return v.Expiry != nil && !now.Before(*v.Expiry)
}

// Entry is a key/value pair handed to Load
type Entry struct {
	Key    string
	Value  []byte
	Expiry *time.Time
}
