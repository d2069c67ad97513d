// Package rdbkv provides a small in-memory key-value server that speaks the
// Redis RESP protocol and can be seeded from an RDB snapshot at startup.
//
// Basic usage:
//
//	srv, err := rdbkv.New(
//		rdbkv.WithAddr("127.0.0.1:6379"),
//		rdbkv.WithSnapshot("/tmp/redis-files", "dump.rdb"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Close()
//
//	// Loads the snapshot, then starts accepting clients
//	if err := srv.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// The server supports PING, ECHO, GET, SET (with PX), CONFIG GET and KEYS.
// A missing snapshot file starts the server empty; a corrupt one aborts
// Start with a *StartupError.
//
// The building blocks live in subpackages:
//
//   - protocol: RESP frame decoding and reply encoding
//   - command: request validation into a closed set of commands
//   - storage: the expiring key-value store
//   - rdb: the snapshot decoder
//   - config: settings loading and the CONFIG GET registry
//   - server: the TCP server and worker pool
//   - metrics: Prometheus collectors
package rdbkv
