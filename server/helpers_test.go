package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"wsrpc/message"
	"wsrpc/transport"
)

// fakeChannel is an in-memory transport.Channel. Frames and read errors are
// queued by the test; writes are recorded.
type fakeChannel struct {
	in     chan transport.Frame
	inErr  chan error
	closed chan struct{}
	writes chan struct{}

	// ackClose makes WriteClose queue the peer's echo, like a well-behaved
	// client completing the handshake.
	ackClose bool

	closeOnce sync.Once
	mu        sync.Mutex
	texts     [][]byte
	closes    []transport.CloseError
	writeErr  error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		in:     make(chan transport.Frame, 16),
		inErr:  make(chan error, 4),
		closed: make(chan struct{}),
		writes: make(chan struct{}, 64),
	}
}

func (f *fakeChannel) ReadFrame() (transport.Frame, error) {
	select {
	case <-f.closed:
		return transport.Frame{}, net.ErrClosed
	default:
	}
	select {
	case fr := <-f.in:
		return fr, nil
	case err := <-f.inErr:
		return transport.Frame{}, err
	case <-f.closed:
		return transport.Frame{}, net.ErrClosed
	}
}

func (f *fakeChannel) WriteText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.texts = append(f.texts, append([]byte(nil), data...))
	f.writes <- struct{}{}
	return nil
}

func (f *fakeChannel) WriteClose(code int, text string) error {
	f.mu.Lock()
	f.closes = append(f.closes, transport.CloseError{Code: code, Text: text})
	f.mu.Unlock()
	if f.ackClose {
		f.inErr <- &transport.CloseError{Code: code, Text: text}
	}
	f.writes <- struct{}{}
	return nil
}

func (f *fakeChannel) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeChannel) RemoteAddr() string { return "fake:1" }

func (f *fakeChannel) setWriteErr(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *fakeChannel) sendText(s string) {
	f.in <- transport.Frame{Text: true, Data: []byte(s)}
}

func (f *fakeChannel) textFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	for i, b := range f.texts {
		out[i] = string(b)
	}
	return out
}

func (f *fakeChannel) closeFrames() []transport.CloseError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.CloseError(nil), f.closes...)
}

// waitWrites blocks until n more writes (text or close) have happened.
func (f *fakeChannel) waitWrites(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.writes:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for write %d of %d", i+1, n)
		}
	}
}

func waitClosed(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("connection still %s", c.State())
	}
}

// testMethods registers the methods the connection and server tests call.
// "wait" blocks until release is closed.
func testMethods(t testing.TB, release <-chan struct{}) *MethodRegistry {
	t.Helper()
	reg := NewMethodRegistry()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(reg.RegisterFunc("add", func(_ context.Context, a, b float64) (float64, error) {
		return a + b, nil
	}))
	must(reg.RegisterFunc("divide", func(_ context.Context, a, b float64) (float64, error) {
		if b == 0 {
			return 0, message.NewErrorWithData(message.CodeServerError, "division by zero", []float64{a, b})
		}
		return a / b, nil
	}))
	must(reg.RegisterFunc("echo", func(_ context.Context, s string) (string, error) {
		return s, nil
	}))
	must(reg.RegisterFunc("wait", func(ctx context.Context, s string) (string, error) {
		select {
		case <-release:
			return s, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}))
	return reg
}
