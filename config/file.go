package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	ListenAddr      string      `toml:"listen_addr"`
	Path            string      `toml:"path"`
	AdvertiseAddr   string      `toml:"advertise_addr"`
	ReadLimit       int64       `toml:"read_limit"`
	WriteTimeout    string      `toml:"write_timeout"`
	CloseTimeout    string      `toml:"close_timeout"`
	HandlerTimeout  string      `toml:"handler_timeout"`
	ShutdownTimeout string      `toml:"shutdown_timeout"`
	RateLimit       float64     `toml:"rate_limit"`
	RateBurst       int         `toml:"rate_burst"`
	MetricsAddr     string      `toml:"metrics_addr"`
	Restart         restartFile `toml:"restart"`
	Etcd            etcdFile    `toml:"etcd"`
	Log             logFile     `toml:"log"`
}

type restartFile struct {
	MaxAttempts  int     `toml:"max_attempts"`
	InitialDelay string  `toml:"initial_delay"`
	MaxDelay     string  `toml:"max_delay"`
	Multiplier   float64 `toml:"multiplier"`
	Jitter       bool    `toml:"jitter"`
}

type etcdFile struct {
	Endpoints   []string `toml:"endpoints"`
	Service     string   `toml:"service"`
	TTL         int64    `toml:"ttl"`
	DialTimeout string   `toml:"dial_timeout"`
}

type logFile struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	Development bool   `toml:"development"`
}

// Load reads path over Default. Keys absent from the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("path") {
		cfg.Path = strings.TrimSpace(raw.Path)
	}
	if meta.IsDefined("advertise_addr") {
		cfg.AdvertiseAddr = strings.TrimSpace(raw.AdvertiseAddr)
	}
	if meta.IsDefined("read_limit") {
		cfg.ReadLimit = raw.ReadLimit
	}
	if meta.IsDefined("rate_limit") {
		cfg.RateLimit = raw.RateLimit
	}
	if meta.IsDefined("rate_burst") {
		cfg.RateBurst = raw.RateBurst
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"write_timeout"}, raw.WriteTimeout, &cfg.WriteTimeout},
		{[]string{"close_timeout"}, raw.CloseTimeout, &cfg.CloseTimeout},
		{[]string{"handler_timeout"}, raw.HandlerTimeout, &cfg.HandlerTimeout},
		{[]string{"shutdown_timeout"}, raw.ShutdownTimeout, &cfg.ShutdownTimeout},
		{[]string{"restart", "initial_delay"}, raw.Restart.InitialDelay, &cfg.Restart.Backoff.InitialDelay},
		{[]string{"restart", "max_delay"}, raw.Restart.MaxDelay, &cfg.Restart.Backoff.MaxDelay},
		{[]string{"etcd", "dial_timeout"}, raw.Etcd.DialTimeout, &cfg.Etcd.DialTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if meta.IsDefined("restart", "max_attempts") {
		cfg.Restart.MaxAttempts = raw.Restart.MaxAttempts
	}
	if meta.IsDefined("restart", "multiplier") {
		cfg.Restart.Backoff.Multiplier = raw.Restart.Multiplier
	}
	if meta.IsDefined("restart", "jitter") {
		cfg.Restart.Backoff.Jitter = raw.Restart.Jitter
	}

	if meta.IsDefined("etcd", "endpoints") {
		cfg.Etcd.Endpoints = normalizeList(raw.Etcd.Endpoints)
	}
	if meta.IsDefined("etcd", "service") {
		cfg.Etcd.Service = strings.TrimSpace(raw.Etcd.Service)
	}
	if meta.IsDefined("etcd", "ttl") {
		cfg.Etcd.TTL = raw.Etcd.TTL
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
	if meta.IsDefined("log", "development") {
		cfg.Log.Development = raw.Log.Development
	}

	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
