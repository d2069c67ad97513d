// Package server serves the rdbkv command set over TCP using the RESP
// protocol.
//
// Connections are handled by a bounded pool of workers. Each worker owns
// one connection at a time and processes its requests in order until the
// client disconnects; while every worker is busy, new connections wait in
// the accept loop. The server is compatible with clients such as
// github.com/redis/go-redis for the commands it supports:
//   - PING, ECHO
//   - GET, SET with an optional PX expiry
//   - CONFIG GET for the startup parameters
//   - KEYS, listing every live key
package server
