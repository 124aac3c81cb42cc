// Package transport adapts message-oriented sockets to the Channel interface
// a connection needs: read one complete frame, write a text frame, send a close
// frame carrying a numeric reason, and tear the socket down.
//
// Channel hides the socket library from the connection state machine. The
// websocket adapter is the production implementation; tests substitute an
// in-memory one.
package transport

import "fmt"

// Frame is one complete inbound message.
type Frame struct {
	Text bool // false for binary frames
	Data []byte
}

// Channel is a bidirectional, message-oriented transport.
//
// ReadFrame must only be called from a single goroutine. WriteText is not safe
// for concurrent use; callers serialize writes. WriteClose and Close may be
// called concurrently with the other methods.
type Channel interface {
	ReadFrame() (Frame, error)
	WriteText(data []byte) error
	WriteClose(code int, text string) error
	Close() error
	RemoteAddr() string
}

// CloseError is returned by ReadFrame once the peer's close frame arrives,
// either as the peer starting the close handshake or acknowledging ours.
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("transport closed by peer: %d %s", e.Code, e.Text)
}
