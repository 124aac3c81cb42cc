package server

import (
	"time"

	"go.uber.org/zap"

	"wsrpc/discovery"
	"wsrpc/metrics"
)

// Config holds the runtime knobs of a Server.
type Config struct {
	// Path is the HTTP path upgraded to websocket by Serve.
	Path            string
	ReadLimit       int64
	WriteTimeout    time.Duration
	CloseTimeout    time.Duration
	ShutdownTimeout time.Duration
	Restart         RestartConfig

	// Discovery announcement. AdvertiseAddr defaults to the bound address.
	ServiceName   string
	AdvertiseAddr string
	DiscoveryTTL  int64
}

func DefaultConfig() Config {
	return Config{
		Path:            "/",
		ReadLimit:       1 << 20,
		WriteTimeout:    10 * time.Second,
		CloseTimeout:    5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Restart: RestartConfig{
			MaxAttempts: 5,
			Backoff: BackoffConfig{
				InitialDelay: 100 * time.Millisecond,
				Multiplier:   2,
				MaxDelay:     5 * time.Second,
				Jitter:       true,
			},
		},
		ServiceName:  "wsrpc",
		DiscoveryTTL: 10,
	}
}

type Option func(*Server)

func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDiscovery announces every bind of Serve under cfg.ServiceName.
func WithDiscovery(reg discovery.Registry) Option {
	return func(s *Server) { s.discovery = reg }
}

// WithMetrics records connection and listener metrics on m. With the default
// registry, m only labels requests with registered method names.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}
