// Package config loads wsrpcd settings from a TOML file and the environment.
// Defaults come first, then keys defined in the file, then WSRPC_* variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wsrpc/logging"
	"wsrpc/server"
)

type Config struct {
	ListenAddr      string
	Path            string
	AdvertiseAddr   string
	ReadLimit       int64
	WriteTimeout    time.Duration
	CloseTimeout    time.Duration
	HandlerTimeout  time.Duration // zero disables the per-request timeout
	ShutdownTimeout time.Duration
	RateLimit       float64 // requests per second across the server, zero disables
	RateBurst       int
	MetricsAddr     string // empty disables the metrics endpoint

	Restart server.RestartConfig
	Etcd    EtcdConfig
	Log     logging.Config
}

// EtcdConfig enables discovery when Endpoints is non-empty.
type EtcdConfig struct {
	Endpoints   []string
	Service     string
	TTL         int64
	DialTimeout time.Duration
}

func Default() Config {
	sc := server.DefaultConfig()
	return Config{
		ListenAddr:      ":8080",
		Path:            sc.Path,
		ReadLimit:       sc.ReadLimit,
		WriteTimeout:    sc.WriteTimeout,
		CloseTimeout:    sc.CloseTimeout,
		HandlerTimeout:  30 * time.Second,
		ShutdownTimeout: sc.ShutdownTimeout,
		RateBurst:       1,
		Restart:         sc.Restart,
		Etcd: EtcdConfig{
			Service:     sc.ServiceName,
			TTL:         sc.DiscoveryTTL,
			DialTimeout: 5 * time.Second,
		},
		Log: logging.DefaultConfig(),
	}
}

// Server projects the settings the server package consumes.
func (c Config) Server() server.Config {
	return server.Config{
		Path:            c.Path,
		ReadLimit:       c.ReadLimit,
		WriteTimeout:    c.WriteTimeout,
		CloseTimeout:    c.CloseTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
		Restart:         c.Restart,
		ServiceName:     c.Etcd.Service,
		AdvertiseAddr:   c.AdvertiseAddr,
		DiscoveryTTL:    c.Etcd.TTL,
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("path %q must start with /", c.Path))
	}
	for name, d := range map[string]time.Duration{
		"write_timeout":    c.WriteTimeout,
		"close_timeout":    c.CloseTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.HandlerTimeout < 0 {
		errs = append(errs, fmt.Errorf("handler_timeout must not be negative, got %s", c.HandlerTimeout))
	}
	if c.ReadLimit < 0 {
		errs = append(errs, fmt.Errorf("read_limit must not be negative, got %d", c.ReadLimit))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit and rate_burst must not be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		errs = append(errs, errors.New("rate_burst must be positive when rate_limit is set"))
	}
	if c.Restart.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("restart.max_attempts must not be negative"))
	}
	if len(c.Etcd.Endpoints) > 0 && (c.Etcd.TTL <= 0 || c.Etcd.Service == "") {
		errs = append(errs, errors.New("etcd.ttl and etcd.service are required with etcd.endpoints"))
	}
	return errors.Join(errs...)
}
