// Package server accepts websocket connections and serves JSON-RPC 2.0
// requests on them.
//
// Request processing pipeline:
//
//	Serve → http.Server → ServeHTTP (upgrade) → Accept
//	  → Conn.serve (single goroutine reads frames, classifies them)
//	    → Dispatcher.Handle (one goroutine per request)
//	      → Middleware Chain → Registry.Invoke → Conn.Send (per-connection write lock)
package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wsrpc/discovery"
	"wsrpc/message"
	"wsrpc/metrics"
	"wsrpc/middleware"
	"wsrpc/protocol"
	"wsrpc/transport"
)

// ErrServerClosed is returned by Serve when called after Shutdown.
var ErrServerClosed = errors.New("server closed")

// A listener that served this long before failing starts a fresh restart
// budget.
const stableServe = time.Minute

// Server is the Listener: it owns the bound socket, every live connection
// and the handler chain they share.
type Server struct {
	cfg       Config
	log       *zap.Logger
	registry  Registry
	methods   *MethodRegistry // nil when a custom Registry is in use
	metrics   *metrics.Collector
	discovery discovery.Registry
	upgrader  *transport.Upgrader

	middlewares []middleware.Middleware
	handlerOnce sync.Once
	handler     middleware.HandlerFunc

	// listen binds the socket; replaced in tests.
	listen func(network, address string) (net.Listener, error)
	rng    *rand.Rand

	mu        sync.Mutex
	conns     map[string]*Conn
	httpSrv   *http.Server
	listener  net.Listener
	announced string

	inflight sync.WaitGroup // dispatched requests
	readers  sync.WaitGroup // connection read loops
	shutdown atomic.Bool
}

// NewServer creates a server backed by reg. A nil reg gets a fresh
// MethodRegistry, reachable through Register, RegisterName and RegisterFunc.
func NewServer(reg Registry, opts ...Option) *Server {
	s := &Server{
		cfg:    DefaultConfig(),
		log:    zap.NewNop(),
		listen: net.Listen,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		conns:  make(map[string]*Conn),
	}
	if reg == nil {
		s.methods = NewMethodRegistry()
		reg = s.methods
	}
	s.registry = reg
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil && s.methods != nil {
		s.metrics.KnownMethods(s.methods.Has)
	}
	s.upgrader = transport.NewUpgrader(transport.WebSocketConfig{
		ReadLimit:    s.cfg.ReadLimit,
		WriteTimeout: s.cfg.WriteTimeout,
	})
	return s
}

var errCustomRegistry = errors.New("server: registration needs the default method registry")

// Register exposes rcvr's methods as "Type.Method".
func (s *Server) Register(rcvr any) error {
	if s.methods == nil {
		return errCustomRegistry
	}
	return s.methods.Register(rcvr)
}

func (s *Server) RegisterName(name string, rcvr any) error {
	if s.methods == nil {
		return errCustomRegistry
	}
	return s.methods.RegisterName(name, rcvr)
}

func (s *Server) RegisterFunc(name string, fn any) error {
	if s.methods == nil {
		return errCustomRegistry
	}
	return s.methods.RegisterFunc(name, fn)
}

// Use appends a middleware. Middlewares apply in the order added and must be
// installed before the first connection is accepted.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

func (s *Server) chain() middleware.HandlerFunc {
	s.handlerOnce.Do(func() {
		s.handler = middleware.Chain(s.middlewares...)(s.invoke)
	})
	return s.handler
}

func (s *Server) invoke(ctx context.Context, req *message.Request) (any, error) {
	return s.registry.Invoke(ctx, req.Method, req.Params)
}

// ServeHTTP upgrades r to a websocket and accepts it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.shutdown.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	s.Accept(ws)
}

// Accept wraps ch in a Conn, tracks it until it closes and starts its read
// loop. Once Shutdown has begun the channel is closed with GoingAway instead
// and the returned Conn is already Closed.
func (s *Server) Accept(ch transport.Channel) *Conn {
	c := newConn(ch, connConfig{
		handler:      s.chain(),
		log:          s.log,
		metrics:      s.metrics,
		inflight:     &s.inflight,
		closeTimeout: s.cfg.CloseTimeout,
		onClose:      s.forget,
	})

	if s.metrics != nil {
		s.metrics.ConnectionOpened()
	}

	// The flag is set under mu, so no readers.Add follows Shutdown's Wait.
	s.mu.Lock()
	if s.shutdown.Load() {
		s.mu.Unlock()
		c.Close(protocol.CloseGoingAway, "server shutting down")
		c.finalize()
		return c
	}
	s.conns[c.id] = c
	s.readers.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.readers.Done()
		c.serve(context.Background())
	}()
	return c
}

func (s *Server) forget(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	if s.metrics != nil {
		reason, _ := c.CloseReason()
		s.metrics.ConnectionClosed(reason)
	}
}

// Connections returns a snapshot of the live connections.
func (s *Server) Connections() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Addr is the bound address, nil while not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve binds address and serves until Shutdown or ctx ends, both of which
// return nil. A listener-level failure is logged and the socket re-bound after
// an exponential backoff; after Restart.MaxAttempts consecutive failures the
// last error is returned.
func (s *Server) Serve(ctx context.Context, address string) error {
	if s.shutdown.Load() {
		return ErrServerClosed
	}
	stopped := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(stopped)
		sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			s.log.Warn("shutdown incomplete", zap.Error(err))
		}
	})
	defer func() {
		if !stop() {
			<-stopped
		}
	}()

	attempt := 0
	for {
		start := time.Now()
		err := s.serveOnce(ctx, address)
		if s.shutdown.Load() || ctx.Err() != nil {
			return nil
		}
		if time.Since(start) >= stableServe {
			attempt = 0
		}
		attempt++
		if limit := s.cfg.Restart.MaxAttempts; limit > 0 && attempt > limit {
			s.log.Error("listener failed, giving up", zap.Error(err), zap.Int("failures", attempt))
			return fmt.Errorf("listener failed %d times: %w", attempt, err)
		}

		delay := NextBackoffDelay(s.cfg.Restart.Backoff, attempt, s.rng)
		s.log.Error("listener failed, restarting",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		if s.metrics != nil {
			s.metrics.ListenerRestart()
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (s *Server) serveOnce(ctx context.Context, address string) error {
	l, err := s.listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.log.Named("http")),
	}

	s.mu.Lock()
	if s.shutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.httpSrv = srv
	s.mu.Unlock()

	s.log.Info("listening", zap.String("addr", l.Addr().String()), zap.String("path", s.cfg.Path))
	s.announce(ctx, l.Addr())

	err = srv.Serve(l)

	s.mu.Lock()
	if s.listener == l {
		s.listener = nil
		s.httpSrv = nil
	}
	s.mu.Unlock()
	return err
}

func (s *Server) announce(ctx context.Context, bound net.Addr) {
	if s.discovery == nil {
		return
	}
	addr := s.cfg.AdvertiseAddr
	if addr == "" {
		addr = bound.String()
	}
	inst := discovery.Instance{Addr: addr, Path: s.cfg.Path}
	if err := s.discovery.Register(ctx, s.cfg.ServiceName, inst, s.cfg.DiscoveryTTL); err != nil {
		s.log.Warn("discovery register failed", zap.String("service", s.cfg.ServiceName), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.announced = addr
	s.mu.Unlock()
}

// Shutdown deregisters from discovery, stops accepting, closes every live
// connection with GoingAway and waits for in-flight requests and read loops
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown.Store(true)
	announced := s.announced
	s.announced = ""
	srv := s.httpSrv
	s.mu.Unlock()

	if s.discovery != nil && announced != "" {
		if err := s.discovery.Deregister(ctx, s.cfg.ServiceName, announced); err != nil {
			s.log.Warn("discovery deregister failed", zap.Error(err))
		}
	}

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Warn("http shutdown", zap.Error(err))
		}
	}

	for _, c := range s.Connections() {
		c.Close(protocol.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.readers.Wait()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for ongoing requests to finish: %w", ctx.Err())
	}
}
