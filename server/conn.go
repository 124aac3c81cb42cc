package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wsrpc/codec"
	"wsrpc/logging"
	"wsrpc/message"
	"wsrpc/metrics"
	"wsrpc/middleware"
	"wsrpc/protocol"
	"wsrpc/transport"
)

// ErrConnClosed is returned by Send once the connection has left StateOpen.
var ErrConnClosed = errors.New("connection closed")

// maxLoggedPayload caps the offending payload attached to violation logs.
const maxLoggedPayload = 256

// State is the lifecycle position of a Conn. It only moves forward:
// Open, then Closing, then Closed.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type connConfig struct {
	handler      middleware.HandlerFunc
	log          *zap.Logger
	metrics      *metrics.Collector
	inflight     *sync.WaitGroup
	closeTimeout time.Duration
	onClose      func(*Conn)
}

// Conn is one accepted websocket session. It reads frames sequentially,
// hands requests to its Dispatcher and serializes replies onto the channel.
//
// A Conn that breaks the protocol is closed with UnsupportedData; a transport
// failure closes it with InternalError. Either way the close handshake is
// given CloseTimeout to complete before the channel is torn down.
type Conn struct {
	id           string
	ch           transport.Channel
	codec        codec.Codec
	dispatcher   *Dispatcher
	log          *zap.Logger
	metrics      *metrics.Collector
	closeTimeout time.Duration
	onClose      func(*Conn)

	state   atomic.Int32
	writeMu sync.Mutex

	mu     sync.Mutex
	reason protocol.CloseReason
	text   string
	err    error
	timer  *time.Timer

	finalizeOnce sync.Once
	done         chan struct{}
}

func newConn(ch transport.Channel, cfg connConfig) *Conn {
	id := uuid.NewString()
	log := cfg.log
	if log == nil {
		log = zap.NewNop()
	}
	c := &Conn{
		id:           id,
		ch:           ch,
		codec:        codec.JSON,
		log:          log.With(zap.String("conn_id", id), zap.String("remote", ch.RemoteAddr())),
		metrics:      cfg.metrics,
		closeTimeout: cfg.closeTimeout,
		onClose:      cfg.onClose,
		done:         make(chan struct{}),
	}
	c.dispatcher = NewDispatcher(cfg.handler, c.Send, c.log, cfg.inflight)
	return c
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) RemoteAddr() string { return c.ch.RemoteAddr() }
func (c *Conn) State() State       { return State(c.state.Load()) }

// Done is closed once the connection reaches StateClosed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// CloseReason reports the reason and text recorded by the first close, by
// either side. It is zero while the connection is open.
func (c *Conn) CloseReason() (protocol.CloseReason, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.text
}

// Err returns the violation or transport error that closed the connection,
// nil for a clean close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send encodes v and writes it as one text frame.
func (c *Conn) Send(v any) error {
	if c.State() != StateOpen {
		return ErrConnClosed
	}
	data, err := c.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	c.writeMu.Lock()
	if c.State() != StateOpen {
		c.writeMu.Unlock()
		return ErrConnClosed
	}
	err = c.ch.WriteText(data)
	c.writeMu.Unlock()

	if err != nil {
		c.log.Error("write failed", zap.Error(err))
		c.beginClose(protocol.CloseInternalError, err.Error(), err)
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close starts the close handshake with reason. Only the first call on an
// open connection has any effect.
func (c *Conn) Close(reason protocol.CloseReason, text string) error {
	c.beginClose(reason, text, nil)
	return nil
}

func (c *Conn) serve(ctx context.Context) {
	ctx = logging.WithContext(ctx, c.log)
	c.log.Debug("connection opened", zap.String("codec", c.codec.Name()))

	for {
		f, err := c.ch.ReadFrame()
		if err != nil {
			c.readFailed(err)
			return
		}
		// Past Open only the peer's close acknowledgement matters.
		if c.State() != StateOpen {
			continue
		}

		msg, err := protocol.Decode(f)
		if err != nil {
			c.frameReceived(message.KindMalformed)
			c.violation(err)
			continue
		}
		c.frameReceived(msg.Kind())

		req, err := protocol.RequireRequest(msg, f.Data)
		if err != nil {
			c.violation(err)
			continue
		}
		c.dispatcher.Handle(ctx, req)
	}
}

func (c *Conn) frameReceived(kind message.Kind) {
	if c.metrics != nil {
		c.metrics.FrameReceived(kind)
	}
}

func (c *Conn) violation(err error) {
	text := err.Error()
	var payload []byte
	var v *protocol.ViolationError
	if errors.As(err, &v) {
		text = v.Message
		payload = v.Data
	}
	if len(payload) > maxLoggedPayload {
		payload = payload[:maxLoggedPayload]
	}
	c.log.Warn("protocol violation", zap.Error(err), zap.ByteString("payload", payload))
	c.beginClose(protocol.CloseUnsupportedData, text, err)
}

func (c *Conn) readFailed(err error) {
	var ce *transport.CloseError
	switch {
	case errors.As(err, &ce) && ce.Code != int(protocol.CloseAbnormalClosure):
		if c.recordClose(protocol.CloseReason(ce.Code), ce.Text, nil) {
			c.log.Debug("closed by peer", zap.Int("code", ce.Code), zap.String("text", ce.Text))
		}
	case c.State() != StateOpen:
		// Our own close: either acknowledged abruptly or torn down by the timer.
	default:
		c.log.Error("transport error", zap.Error(err))
		c.beginClose(protocol.CloseInternalError, err.Error(), err)
	}
	c.finalize()
}

// recordClose moves Open to Closing and stores why. It reports whether this
// call made the transition.
func (c *Conn) recordClose(reason protocol.CloseReason, text string, cause error) bool {
	if !c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return false
	}
	c.mu.Lock()
	c.reason, c.text, c.err = reason, text, cause
	c.mu.Unlock()
	return true
}

func (c *Conn) beginClose(reason protocol.CloseReason, text string, cause error) {
	if !c.recordClose(reason, text, cause) {
		return
	}
	if err := c.ch.WriteClose(reason.Code(), text); err != nil {
		c.log.Debug("close frame not sent", zap.Error(err))
		c.finalize()
		return
	}
	c.mu.Lock()
	if c.State() != StateClosed {
		c.timer = time.AfterFunc(c.closeTimeout, c.finalize)
	}
	c.mu.Unlock()
}

func (c *Conn) finalize() {
	c.finalizeOnce.Do(func() {
		c.state.Store(int32(StateClosed))

		c.mu.Lock()
		if c.timer != nil {
			c.timer.Stop()
		}
		reason, text := c.reason, c.text
		c.mu.Unlock()

		c.log.Info("connection closed", zap.Stringer("reason", reason), zap.String("text", text))
		if c.onClose != nil {
			c.onClose(c)
		}
		// Closing the channel releases the read loop, so it comes last.
		_ = c.ch.Close()
		close(c.done)
	})
}
