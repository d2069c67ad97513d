// Package main provides the entry point for rdbkv-server.
//
// rdbkv-server serves an in-memory key-value store over the Redis protocol,
// optionally seeded from an RDB snapshot:
//
//	rdbkv-server --dir /tmp/redis-files --dbfilename dump.rdb --port 6380
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		os.Exit(1)
	}
}
