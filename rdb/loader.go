package rdb

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/raniellyferreira/rdbkv/storage"
)

// Loader receives the decoded entries in one batch
type Loader interface {
	Load(entries []storage.Entry) error
}

// LoadStats describes a successfully applied snapshot
type LoadStats struct {
	Version    int
	Keys       int
	ExpireHint uint64
	Bytes      int
	// Checksum is the xxhash64 digest of the file content
	Checksum uint64
}

// Apply decodes buf and inserts every entry into dst. Nothing is
// inserted unless the whole snapshot decodes.
func Apply(buf []byte, dst Loader) (LoadStats, error) {
	snap, err := Decode(buf)
	if err != nil {
		return LoadStats{}, err
	}

	entries := make([]storage.Entry, len(snap.Entries))
	for i, e := range snap.Entries {
		entries[i] = storage.Entry{
			Key:   e.Key.String(),
			Value: e.Value.Bytes(),
		}
	}

	if err := dst.Load(entries); err != nil {
		return LoadStats{}, fmt.Errorf("failed to apply snapshot: %w", err)
	}

	return LoadStats{
		Version:    snap.Version,
		Keys:       len(entries),
		ExpireHint: snap.ExpireCount,
		Bytes:      len(buf),
		Checksum:   xxhash.Sum64(buf),
	}, nil
}

// LoadFile reads the snapshot at path and applies it to dst. A missing
// file is reported with an error matching os.ErrNotExist.
func LoadFile(path string, dst Loader) (LoadStats, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	stats, err := Apply(buf, dst)
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}
	return stats, nil
}
