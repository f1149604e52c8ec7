package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// fileOptions mirrors Options with TOML tags; time.Duration fields are
// plain strings in the file ("5s", "250ms") and parsed after decoding.
type fileOptions struct {
	MaxRedirections     int    `toml:"max_redirections"`
	ConnectTimeout      string `toml:"connect_timeout"`
	CommandTimeout      string `toml:"command_timeout"`
	MaxRetry            int    `toml:"max_retry"`
	RoutePreferReplicas bool   `toml:"route_prefer_replicas"`
	Username            string `toml:"username"`
	Password            string `toml:"password"`
}

// Load reads a TOML config file, the way the pack's telegraf layers its own
// configuration on github.com/BurntSushi/toml, for deployments that prefer
// a config file over constructing Options in code.
func Load(path string) (*Options, error) {
	var fo fileOptions
	if _, err := toml.DecodeFile(path, &fo); err != nil {
		return nil, err
	}
	opts := Default()
	if fo.MaxRedirections != 0 {
		opts.MaxRedirections = fo.MaxRedirections
	}
	if fo.MaxRetry != 0 {
		opts.MaxRetry = fo.MaxRetry
	}
	opts.RoutePreferReplicas = fo.RoutePreferReplicas
	opts.Username = fo.Username
	opts.Password = fo.Password
	if fo.ConnectTimeout != "" {
		d, err := time.ParseDuration(fo.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		opts.ConnectTimeout = d
	}
	if fo.CommandTimeout != "" {
		d, err := time.ParseDuration(fo.CommandTimeout)
		if err != nil {
			return nil, err
		}
		opts.CommandTimeout = d
	}
	return opts, nil
}

// FromEnv overlays VALKEYCLUSTER_* environment variables onto a copy of
// Default(), for the common container-deployment case of not shipping a
// config file at all.
func FromEnv() *Options {
	opts := Default()
	if v := os.Getenv("VALKEYCLUSTER_MAX_REDIRECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxRedirections = n
		}
	}
	if v := os.Getenv("VALKEYCLUSTER_MAX_RETRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxRetry = n
		}
	}
	if v := os.Getenv("VALKEYCLUSTER_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts.ConnectTimeout = d
		}
	}
	if v := os.Getenv("VALKEYCLUSTER_COMMAND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts.CommandTimeout = d
		}
	}
	if v := os.Getenv("VALKEYCLUSTER_ROUTE_PREFER_REPLICAS"); v != "" {
		opts.RoutePreferReplicas = v == "1" || v == "true"
	}
	if v := os.Getenv("VALKEYCLUSTER_USERNAME"); v != "" {
		opts.Username = v
	}
	if v := os.Getenv("VALKEYCLUSTER_PASSWORD"); v != "" {
		opts.Password = v
	}
	return opts
}
