package server

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"wsrpc/message"
	"wsrpc/middleware"
)

// Sender delivers one outbound envelope on the owning connection.
type Sender func(v any) error

// Dispatcher turns each accepted request into exactly one reply. Handling is
// asynchronous: a slow method never holds up the connection's read loop, and
// replies go out in completion order.
type Dispatcher struct {
	handler middleware.HandlerFunc
	send    Sender
	log     *zap.Logger
	wg      *sync.WaitGroup
}

// NewDispatcher wires handler to send. wg, when non-nil, tracks in-flight
// requests for graceful shutdown.
func NewDispatcher(handler middleware.HandlerFunc, send Sender, log *zap.Logger, wg *sync.WaitGroup) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{handler: handler, send: send, log: log, wg: wg}
}

func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) {
	if d.wg != nil {
		d.wg.Add(1)
	}
	go func() {
		if d.wg != nil {
			defer d.wg.Done()
		}
		reply := d.reply(ctx, req)
		if err := d.send(reply); err != nil {
			d.log.Debug("reply dropped",
				zap.String("method", req.Method),
				zap.Stringer("id", req.ID),
				zap.Error(err))
		}
	}()
}

func (d *Dispatcher) reply(ctx context.Context, req *message.Request) (reply message.Message) {
	defer func() {
		if v := recover(); v != nil {
			d.log.Error("handler panicked",
				zap.String("method", req.Method),
				zap.Any("panic", v),
				zap.Stack("stack"))
			reply = message.NewErrorMessage(req.ID, message.NewError(message.CodeInternalError, "internal error"))
		}
	}()

	result, err := d.handler(ctx, req)
	if err != nil {
		return message.NewErrorMessage(req.ID, d.errorObject(req, err))
	}
	resp, err := message.NewResponse(req.ID, result)
	if err != nil {
		d.log.Error("result not encodable", zap.String("method", req.Method), zap.Error(err))
		return message.NewErrorMessage(req.ID, message.NewError(message.CodeInternalError, "result could not be encoded"))
	}
	return resp
}

func (d *Dispatcher) errorObject(req *message.Request, err error) *message.ErrorObject {
	var e *message.ErrorObject
	if errors.As(err, &e) {
		return e
	}
	var p *PanicError
	if errors.As(err, &p) {
		d.log.Error("method panicked", zap.String("method", req.Method), zap.Any("panic", p.Value))
		return message.NewError(message.CodeInternalError, "internal error")
	}
	return message.NewError(message.CodeInternalError, err.Error())
}
