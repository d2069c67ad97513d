package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/raniellyferreira/rdbkv"
	"github.com/raniellyferreira/rdbkv/config"
	"github.com/raniellyferreira/rdbkv/internal/logging"
)

// Build information, set via ldflags.
var (
	commit    = "unknown"
	buildTime = "unknown"
)

// flagKeys maps command line flags to settings keys
var flagKeys = map[string]string{
	"bind":         "server.bind",
	"port":         "server.port",
	"workers":      "server.workers",
	"dir":          "snapshot.dir",
	"dbfilename":   "snapshot.dbfilename",
	"log-level":    "log.level",
	"log-json":     "log.json",
	"metrics-addr": "metrics.addr",
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "rdbkv-server",
		Usage:   "in-memory key-value server speaking the Redis protocol",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", rdbkv.Version, commit, buildTime),
		Flags:   flags(),
		Action:  run,

		// main owns the exit code
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"RDBKV_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "directory holding the RDB snapshot",
		},
		&cli.StringFlag{
			Name:  "dbfilename",
			Usage: "RDB snapshot file name inside --dir",
		},
		&cli.StringFlag{
			Name:  "bind",
			Usage: "address to listen on",
			Value: config.DefaultBind,
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "port to listen on",
			Value: config.DefaultPort,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "connections served concurrently",
			Value: config.DefaultWorkers,
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "trace, debug, info, warn, error or off",
			Value: config.DefaultLogLevel,
		},
		&cli.BoolFlag{
			Name:  "log-json",
			Usage: "log in JSON format",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "serve Prometheus metrics on this address",
		},
	}
}

// overrides collects the flags given explicitly so they win over the
// configuration file and environment, while defaults do not
func overrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			out[key] = c.Value(flag)
		}
	}
	return out
}

func run(c *cli.Context) error {
	settings, err := config.NewLoader(config.WithConfigFile(c.String("config"))).Load(overrides(c))
	if err != nil {
		return cli.Exit(fmt.Sprintf("load config: %v", err), 2)
	}

	log := logging.New(logging.Options{
		Name:  "rdbkv",
		Level: settings.Log.Level,
		JSON:  settings.Log.JSON,
	})

	srv, err := rdbkv.New(rdbkv.WithSettings(settings), rdbkv.WithLogger(log))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting rdbkv-server",
		logging.F("version", rdbkv.Version),
		logging.F("commit", commit),
		logging.F("addr", settings.Addr()))

	if err := srv.Start(ctx); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	<-ctx.Done()
	log.Info("shutting down")

	if err := srv.Close(); err != nil {
		return cli.Exit(fmt.Sprintf("shutdown: %v", err), 1)
	}
	log.Info("server stopped gracefully")
	return nil
}
