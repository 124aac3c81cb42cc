package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wsrpc/config"
	"wsrpc/discovery"
	"wsrpc/logging"
	"wsrpc/metrics"
	"wsrpc/middleware"
	"wsrpc/server"
	"wsrpc/services/arith"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accepts websocket connections and serves the arith methods until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env")
	if err := config.LoadEnv(envFiles...); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr, _ = cmd.Flags().GetString("listen")
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	opts := []server.Option{
		server.WithConfig(cfg.Server()),
		server.WithLogger(log),
		server.WithMetrics(m),
	}
	if len(cfg.Etcd.Endpoints) > 0 {
		reg, err := discovery.NewEtcdRegistry(cfg.Etcd.Endpoints, cfg.Etcd.DialTimeout, log)
		if err != nil {
			return err
		}
		defer reg.Close()
		opts = append(opts, server.WithDiscovery(reg))
	}

	svr := server.NewServer(nil, opts...)
	svr.Use(middleware.Logging(log))
	svr.Use(middleware.Metrics(m))
	if cfg.RateLimit > 0 {
		svr.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	if cfg.HandlerTimeout > 0 {
		svr.Use(middleware.Timeout(cfg.HandlerTimeout))
	}
	if err := arith.Register(svr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, m, log)
		defer stopMetrics()
	}

	log.Info("wsrpcd starting", zap.String("version", version), zap.String("listen", cfg.ListenAddr))
	if err := svr.Serve(ctx, cfg.ListenAddr); err != nil {
		return err
	}
	log.Info("wsrpcd stopped")
	return nil
}

// serveMetrics exposes /metrics on addr and returns a function that stops it.
func serveMetrics(addr string, m *metrics.Collector, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
