// Package metrics exposes Prometheus collectors for connections, inbound
// frames, requests and listener restarts.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wsrpc/message"
	"wsrpc/protocol"
)

const namespace = "wsrpc"

// unknownMethod replaces method names that did not resolve. Once a method
// filter is installed every name it does not know is replaced, whatever the
// outcome, so clients cannot mint new label values.
const unknownMethod = "_unknown"

type Collector struct {
	gatherer prometheus.Gatherer

	connectionsActive prometheus.Gauge
	connectionsClosed *prometheus.CounterVec
	framesReceived    *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	listenerRestarts  prometheus.Counter

	known atomic.Pointer[func(string) bool]
}

// New registers the collectors with reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		gatherer: reg,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Connections currently open or closing.",
		}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "closed_total",
			Help:      "Closed connections by close reason.",
		}, []string{"reason"}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Inbound frames by classification.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "total",
			Help:      "Dispatched requests by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "duration_seconds",
			Help:      "Request handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		listenerRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "restarts_total",
			Help:      "Listener re-binds after a listener-level error.",
		}),
	}
	reg.MustRegister(
		c.connectionsActive,
		c.connectionsClosed,
		c.framesReceived,
		c.requests,
		c.requestDuration,
		c.listenerRestarts,
	)
	return c
}

func (c *Collector) ConnectionOpened() {
	c.connectionsActive.Inc()
}

func (c *Collector) ConnectionClosed(reason protocol.CloseReason) {
	c.connectionsActive.Dec()
	c.connectionsClosed.WithLabelValues(reason.String()).Inc()
}

func (c *Collector) FrameReceived(kind message.Kind) {
	c.framesReceived.WithLabelValues(kind.String()).Inc()
}

// KnownMethods installs the filter that decides which method names may
// appear as label values. Without one only method-not-found failures are
// folded into "_unknown".
func (c *Collector) KnownMethods(known func(method string) bool) {
	if known == nil {
		c.known.Store(nil)
		return
	}
	c.known.Store(&known)
}

// ObserveRequest records one invocation. The outcome label is "ok" or the
// JSON-RPC error code the request failed with.
func (c *Collector) ObserveRequest(method string, err error, d time.Duration) {
	if known := c.known.Load(); known != nil && !(*known)(method) {
		method = unknownMethod
	}
	outcome := "ok"
	if err != nil {
		code := message.CodeInternalError
		var e *message.ErrorObject
		if errors.As(err, &e) {
			code = e.Code
		}
		if code == message.CodeMethodNotFound {
			method = unknownMethod
		}
		outcome = strconv.Itoa(code)
	}
	c.requests.WithLabelValues(method, outcome).Inc()
	c.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Collector) ListenerRestart() {
	c.listenerRestarts.Inc()
}

// Handler serves the collectors in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
