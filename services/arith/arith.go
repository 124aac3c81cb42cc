// Package arith is the demo service wsrpcd serves: four operations over
// float64 operands.
package arith

import (
	"context"

	"wsrpc/message"
)

type Arith struct{}

func (Arith) Add(_ context.Context, a, b float64) (float64, error) {
	return a + b, nil
}

func (Arith) Subtract(_ context.Context, a, b float64) (float64, error) {
	return a - b, nil
}

func (Arith) Multiply(_ context.Context, a, b float64) (float64, error) {
	return a * b, nil
}

// Divide fails with a -32000 error carrying both operands when b is zero.
func (Arith) Divide(_ context.Context, a, b float64) (float64, error) {
	if b == 0 {
		return 0, message.NewErrorWithData(message.CodeServerError, "division by zero", []float64{a, b})
	}
	return a / b, nil
}

// Registrar is the registration surface of server.Server and
// server.MethodRegistry.
type Registrar interface {
	RegisterName(name string, rcvr any) error
	RegisterFunc(name string, fn any) error
}

// Register exposes Arith both as "Arith.Add" style names and as the bare
// lower-case "add", "subtract", "multiply" and "divide".
func Register(r Registrar) error {
	a := &Arith{}
	if err := r.RegisterName("Arith", a); err != nil {
		return err
	}
	for name, fn := range map[string]any{
		"add":      a.Add,
		"subtract": a.Subtract,
		"multiply": a.Multiply,
		"divide":   a.Divide,
	} {
		if err := r.RegisterFunc(name, fn); err != nil {
			return err
		}
	}
	return nil
}
