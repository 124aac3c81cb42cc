package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"wsrpc/message"
)

// Registry resolves a method name and positional arguments to a result. It is
// the only call the server makes into business logic.
type Registry interface {
	Invoke(ctx context.Context, method string, params []json.RawMessage) (any, error)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// PanicError reports a panic recovered from business logic.
type PanicError struct {
	Method string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Method, e.Value)
}

type methodType struct {
	name     string
	fn       reflect.Value
	argTypes []reflect.Type
}

// MethodRegistry is a Registry built by reflection. A method is any function
// of the form
//
//	func(ctx context.Context, a1 A1, ..., an An) (R, error)
//
// Params are positional: element i of the request's params array is decoded
// into argument i, and the count must match exactly.
type MethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]*methodType
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]*methodType)}
}

// Register exposes the suitable exported methods of rcvr as "Type.Method",
// where Type is the name of the struct rcvr points to.
func (r *MethodRegistry) Register(rcvr any) error {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return fmt.Errorf("rpc: rcvr must be a pointer, got %v", typ)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("rpc: rcvr must point to a struct, got %s", typ.Elem().Kind())
	}
	return r.RegisterName(typ.Elem().Name(), rcvr)
}

// RegisterName is Register with an explicit service name.
func (r *MethodRegistry) RegisterName(name string, rcvr any) error {
	val := reflect.ValueOf(rcvr)
	typ := val.Type()

	found := make([]*methodType, 0, typ.NumMethod())
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}
		mt, ok := newMethodType(name+"."+method.Name, val.Method(i))
		if !ok {
			continue
		}
		found = append(found, mt)
	}
	if len(found) == 0 {
		return fmt.Errorf("rpc: type %s has no exported methods of suitable type", typ)
	}
	return r.add(found...)
}

// RegisterFunc exposes fn under name.
func (r *MethodRegistry) RegisterFunc(name string, fn any) error {
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func {
		return fmt.Errorf("rpc: %s: expected a func, got %T", name, fn)
	}
	mt, ok := newMethodType(name, val)
	if !ok {
		return fmt.Errorf("rpc: %s: want func(context.Context, ...) (R, error), got %s", name, val.Type())
	}
	return r.add(mt)
}

func (r *MethodRegistry) add(methods ...*methodType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mt := range methods {
		if _, exists := r.methods[mt.name]; exists {
			return fmt.Errorf("rpc: method name collision: %s", mt.name)
		}
	}
	for _, mt := range methods {
		r.methods[mt.name] = mt
	}
	return nil
}

// Methods lists registered method names in order.
func (r *MethodRegistry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether method is registered.
func (r *MethodRegistry) Has(method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.methods[method]
	return ok
}

func (r *MethodRegistry) Invoke(ctx context.Context, method string, params []json.RawMessage) (any, error) {
	r.mu.RLock()
	mt, ok := r.methods[method]
	r.mu.RUnlock()
	if !ok {
		return nil, message.NewError(message.CodeMethodNotFound, "method not found: "+method)
	}
	return mt.call(ctx, params)
}

func newMethodType(name string, fn reflect.Value) (*methodType, bool) {
	ft := fn.Type()
	if ft.IsVariadic() || ft.NumIn() < 1 || ft.In(0) != contextType {
		return nil, false
	}
	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return nil, false
	}
	args := make([]reflect.Type, 0, ft.NumIn()-1)
	for i := 1; i < ft.NumIn(); i++ {
		args = append(args, ft.In(i))
	}
	return &methodType{name: name, fn: fn, argTypes: args}, true
}

func (m *methodType) call(ctx context.Context, params []json.RawMessage) (result any, err error) {
	defer func() {
		if v := recover(); v != nil {
			result, err = nil, &PanicError{Method: m.name, Value: v}
		}
	}()

	if len(params) != len(m.argTypes) {
		return nil, message.NewError(message.CodeInvalidParams,
			fmt.Sprintf("%s takes %d params, got %d", m.name, len(m.argTypes), len(params)))
	}

	args := make([]reflect.Value, 0, 1+len(m.argTypes))
	args = append(args, reflect.ValueOf(ctx))
	for i, t := range m.argTypes {
		v := reflect.New(t)
		if err := json.Unmarshal(params[i], v.Interface()); err != nil {
			return nil, message.NewError(message.CodeInvalidParams, fmt.Sprintf("invalid param %d: %v", i, err))
		}
		args = append(args, v.Elem())
	}

	out := m.fn.Call(args)
	if !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}
