// Package rdb decodes the subset of the Redis RDB snapshot format used to
// seed the store at startup.
//
// A snapshot is a "REDIS" tag with a four digit version, arbitrary bytes up
// to the resize-db opcode (0xFB), two length-encoded size hints and then
// that many string entries. Decoding is strict: unsupported value types,
// length forms and integer widths are errors, never skipped.
//
// The whole file is decoded before anything is written to the store, so a
// corrupt snapshot leaves the store untouched:
//
//	stats, err := rdb.LoadFile(filepath.Join(dir, dbfilename), store)
//	if err != nil {
//		return err
//	}
package rdb
