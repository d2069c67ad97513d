// Package config holds the runtime settings of rdbkv and the read-only
// registry answered by CONFIG GET.
//
// Settings are loaded with koanf in increasing priority: defaults, an
// optional YAML file, RDBKV_ environment variables and finally explicit
// overrides (usually command line flags).
package config
