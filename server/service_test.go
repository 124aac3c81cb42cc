package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"wsrpc/message"
)

type Point struct {
	X, Y int
}

type Geometry struct{}

func (g *Geometry) Shift(_ context.Context, p Point, dx int) (Point, error) {
	return Point{X: p.X + dx, Y: p.Y}, nil
}

func (g *Geometry) Origin(context.Context) (Point, error) {
	return Point{}, nil
}

// Not exposed: wrong shape.
func (g *Geometry) Area(p Point) int { return p.X * p.Y }

func params(t *testing.T, vs ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(vs))
	for _, v := range vs {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, b)
	}
	return out
}

func errorCode(t *testing.T, err error) int {
	t.Helper()
	var e *message.ErrorObject
	if !errors.As(err, &e) {
		t.Fatalf("expect *message.ErrorObject, got %T: %v", err, err)
	}
	return e.Code
}

func TestRegisterStruct(t *testing.T) {
	reg := NewMethodRegistry()
	if err := reg.Register(&Geometry{}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Geometry.Origin", "Geometry.Shift"}, reg.Methods()); diff != "" {
		t.Fatalf("methods (-want +got):\n%s", diff)
	}

	got, err := reg.Invoke(context.Background(), "Geometry.Shift", params(t, Point{1, 2}, 3))
	if err != nil {
		t.Fatal(err)
	}
	if got != (Point{X: 4, Y: 2}) {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestRegisterNameAndCollision(t *testing.T) {
	reg := NewMethodRegistry()
	if err := reg.RegisterName("geo", &Geometry{}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Invoke(context.Background(), "geo.Origin", nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterName("geo", &Geometry{}); err == nil || !strings.Contains(err.Error(), "collision") {
		t.Fatalf("expect collision error, got %v", err)
	}
	if err := reg.RegisterFunc("geo.Shift", func(context.Context) (int, error) { return 0, nil }); err == nil {
		t.Fatal("expect collision error for func")
	}
}

func TestRegisterRejectsBadReceivers(t *testing.T) {
	reg := NewMethodRegistry()
	if err := reg.Register(Geometry{}); err == nil {
		t.Fatal("non-pointer receiver must be rejected")
	}
	n := 1
	if err := reg.Register(&n); err == nil {
		t.Fatal("pointer to non-struct must be rejected")
	}
	type empty struct{}
	if err := reg.Register(&empty{}); err == nil {
		t.Fatal("type without methods must be rejected")
	}
}

func TestRegisterFuncShapes(t *testing.T) {
	bad := map[string]any{
		"not a func":     42,
		"no context":     func(a int) (int, error) { return a, nil },
		"one result":     func(context.Context) error { return nil },
		"error not last": func(context.Context) (error, int) { return nil, 0 },
		"variadic":       func(context.Context, ...int) (int, error) { return 0, nil },
	}
	for name, fn := range bad {
		if err := NewMethodRegistry().RegisterFunc("m", fn); err == nil {
			t.Errorf("%s: expect registration error", name)
		}
	}
}

func TestInvokeErrors(t *testing.T) {
	reg := NewMethodRegistry()
	reg.RegisterFunc("add", func(_ context.Context, a, b int) (int, error) { return a + b, nil })
	reg.RegisterFunc("boom", func(context.Context) (int, error) { panic("boom") })
	ctx := context.Background()

	if _, err := reg.Invoke(ctx, "missing", nil); errorCode(t, err) != message.CodeMethodNotFound {
		t.Fatalf("expect method not found, got %v", err)
	}
	if _, err := reg.Invoke(ctx, "add", params(t, 1)); errorCode(t, err) != message.CodeInvalidParams {
		t.Fatalf("expect invalid params for arity, got %v", err)
	}
	if _, err := reg.Invoke(ctx, "add", params(t, 1, "two")); errorCode(t, err) != message.CodeInvalidParams {
		t.Fatalf("expect invalid params for type, got %v", err)
	}

	_, err := reg.Invoke(ctx, "boom", nil)
	var p *PanicError
	if !errors.As(err, &p) || p.Value != "boom" || p.Method != "boom" {
		t.Fatalf("expect recovered panic, got %v", err)
	}

	got, err := reg.Invoke(ctx, "add", params(t, 2, 3))
	if err != nil || got != 5 {
		t.Fatalf("add = %v, %v", got, err)
	}
}

func TestInvokePassesBusinessError(t *testing.T) {
	reg := NewMethodRegistry()
	want := message.NewError(-32050, "custom")
	reg.RegisterFunc("fail", func(context.Context) (any, error) { return nil, want })

	_, err := reg.Invoke(context.Background(), "fail", []json.RawMessage{})
	if err != want {
		t.Fatalf("expect business error to pass through, got %v", err)
	}
}
