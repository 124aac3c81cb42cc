// Package discovery announces a listener's advertised address so that
// clients can find it. Entries live under a TTL lease: a server that dies
// without deregistering disappears once the lease expires.
package discovery

import "context"

// Instance is one announced listener.
type Instance struct {
	Addr     string            `json:"addr"`
	Path     string            `json:"path,omitempty"`
	Version  string            `json:"version,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Registry interface {
	Register(ctx context.Context, service string, inst Instance, ttl int64) error
	Deregister(ctx context.Context, service string, addr string) error
	Discover(ctx context.Context, service string) ([]Instance, error)
	// Watch emits the full instance list after every change until ctx ends.
	Watch(ctx context.Context, service string) <-chan []Instance
}
