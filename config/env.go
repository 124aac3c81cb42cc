package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvListenAddr         = "WSRPC_LISTEN_ADDR"
	EnvPath               = "WSRPC_PATH"
	EnvAdvertiseAddr      = "WSRPC_ADVERTISE_ADDR"
	EnvReadLimit          = "WSRPC_READ_LIMIT"
	EnvWriteTimeout       = "WSRPC_WRITE_TIMEOUT"
	EnvCloseTimeout       = "WSRPC_CLOSE_TIMEOUT"
	EnvHandlerTimeout     = "WSRPC_HANDLER_TIMEOUT"
	EnvShutdownTimeout    = "WSRPC_SHUTDOWN_TIMEOUT"
	EnvRateLimit          = "WSRPC_RATE_LIMIT"
	EnvRateBurst          = "WSRPC_RATE_BURST"
	EnvMetricsAddr        = "WSRPC_METRICS_ADDR"
	EnvRestartMaxAttempts = "WSRPC_RESTART_MAX_ATTEMPTS"
	EnvEtcdEndpoints      = "WSRPC_ETCD_ENDPOINTS"
	EnvEtcdService        = "WSRPC_ETCD_SERVICE"
	EnvEtcdTTL            = "WSRPC_ETCD_TTL"
)

// LoadEnv loads .env files into the process environment. Files that do not
// exist are skipped; with no arguments ".env" is tried. Variables already set
// in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", f, err)
		}
		present = append(present, f)
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// ApplyEnv overrides c with any WSRPC_* variable that is set.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvListenAddr, &c.ListenAddr)
	str(EnvPath, &c.Path)
	str(EnvAdvertiseAddr, &c.AdvertiseAddr)
	str(EnvMetricsAddr, &c.MetricsAddr)
	str(EnvEtcdService, &c.Etcd.Service)

	if v, ok := os.LookupEnv(EnvEtcdEndpoints); ok {
		c.Etcd.Endpoints = normalizeList(strings.Split(v, ","))
	}

	var errs []error
	parse := func(key string, fn func(string) error) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		if err := fn(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	duration := func(dst *time.Duration) func(string) error {
		return func(v string) error {
			d, err := time.ParseDuration(v)
			if err == nil {
				*dst = d
			}
			return err
		}
	}
	integer := func(dst *int64) func(string) error {
		return func(v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err == nil {
				*dst = n
			}
			return err
		}
	}

	parse(EnvWriteTimeout, duration(&c.WriteTimeout))
	parse(EnvCloseTimeout, duration(&c.CloseTimeout))
	parse(EnvHandlerTimeout, duration(&c.HandlerTimeout))
	parse(EnvShutdownTimeout, duration(&c.ShutdownTimeout))
	parse(EnvReadLimit, integer(&c.ReadLimit))
	parse(EnvEtcdTTL, integer(&c.Etcd.TTL))
	parse(EnvRateLimit, func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			c.RateLimit = f
		}
		return err
	})
	parse(EnvRateBurst, func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			c.RateBurst = n
		}
		return err
	})
	parse(EnvRestartMaxAttempts, func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			c.Restart.MaxAttempts = n
		}
		return err
	})
	return errors.Join(errs...)
}
