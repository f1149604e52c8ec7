// Package config holds the dispatcher's tunables: the same small, flat
// options surface the teacher passes as constructor arguments
// (NewValkeyConn(initCap, maxIdle, connTimeout, password, sendReadOnly),
// NewDispatcher(startupNodes, slotReloadInterval, valkeyConn, readPrefer)),
// generalized into one struct plus optional TOML/env loaders.
package config

import (
	"crypto/tls"
	"time"
)

// Options configures a Dispatcher.
type Options struct {
	MaxRedirections     int
	ConnectTimeout      time.Duration
	CommandTimeout      time.Duration
	MaxRetry            int
	RoutePreferReplicas bool
	Username            string
	Password            string
	TLS                 *tls.Config
}

// Default returns the dispatcher's default tuning.
func Default() *Options {
	return &Options{
		MaxRedirections: 5,
		ConnectTimeout:  5 * time.Second,
		CommandTimeout:  0,
		MaxRetry:        5,
	}
}
