package protocol

import (
	"errors"
	"testing"

	"wsrpc/message"
	"wsrpc/transport"
)

func text(s string) transport.Frame {
	return transport.Frame{Text: true, Data: []byte(s)}
}

func TestDecodeClassification(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want message.Kind
	}{
		// Request boundaries
		{"request int id", `{"jsonrpc":"2.0","id":1,"method":"add","params":[1,2]}`, message.KindRequest},
		{"request string id", `{"jsonrpc":"2.0","id":"a","method":"add","params":[]}`, message.KindRequest},
		{"request negative id", `{"jsonrpc":"2.0","id":-3,"method":"add","params":[]}`, message.KindRequest},
		{"request wins over response", `{"jsonrpc":"2.0","id":1,"method":"add","params":[],"result":1}`, message.KindRequest},
		{"null id falls through to notification", `{"jsonrpc":"2.0","id":null,"method":"add","params":[]}`, message.KindNotification},
		{"bool id falls through to notification", `{"jsonrpc":"2.0","id":true,"method":"add","params":[]}`, message.KindNotification},
		{"fractional id falls through to notification", `{"jsonrpc":"2.0","id":1.5,"method":"add","params":[]}`, message.KindNotification},

		// Response boundaries
		{"response null result", `{"jsonrpc":"2.0","result":null}`, message.KindResponse},
		{"response falsy result", `{"jsonrpc":"2.0","result":0}`, message.KindResponse},
		{"response with id", `{"jsonrpc":"2.0","result":{"a":1},"id":9}`, message.KindResponse},

		// Notification boundaries
		{"notification", `{"jsonrpc":"2.0","method":"tick","params":[1]}`, message.KindNotification},

		// Error boundaries
		{"error", `{"jsonrpc":"2.0","error":{"code":-32000,"message":"boom"}}`, message.KindError},
		{"error with data", `{"jsonrpc":"2.0","error":{"code":1,"message":"m","data":{"x":[1]}}}`, message.KindError},

		// Malformed
		{"empty object", `{"jsonrpc":"2.0"}`, message.KindMalformed},
		{"missing version", `{"id":1,"method":"add","params":[]}`, message.KindMalformed},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"add","params":[]}`, message.KindMalformed},
		{"numeric version", `{"jsonrpc":2.0,"id":1,"method":"add","params":[]}`, message.KindMalformed},
		{"version on response", `{"jsonrpc":"2.1","result":1}`, message.KindMalformed},
		{"params object", `{"jsonrpc":"2.0","id":1,"method":"add","params":{"a":1}}`, message.KindMalformed},
		{"params missing", `{"jsonrpc":"2.0","id":1,"method":"add"}`, message.KindMalformed},
		{"params string", `{"jsonrpc":"2.0","method":"add","params":"[]"}`, message.KindMalformed},
		{"method not string", `{"jsonrpc":"2.0","id":1,"method":7,"params":[]}`, message.KindMalformed},
		{"error not object", `{"jsonrpc":"2.0","error":"boom"}`, message.KindMalformed},
		{"error code string", `{"jsonrpc":"2.0","error":{"code":"1","message":"m"}}`, message.KindMalformed},
		{"error code fractional", `{"jsonrpc":"2.0","error":{"code":1.5,"message":"m"}}`, message.KindMalformed},
		{"error message missing", `{"jsonrpc":"2.0","error":{"code":1}}`, message.KindMalformed},
		{"error message number", `{"jsonrpc":"2.0","error":{"code":1,"message":2}}`, message.KindMalformed},
		{"batch array", `[{"jsonrpc":"2.0","id":1,"method":"add","params":[]}]`, message.KindMalformed},
		{"json null", `null`, message.KindMalformed},
		{"json string", `"hello"`, message.KindMalformed},
		{"not json", `hello world`, message.KindMalformed},
		{"truncated", `{"jsonrpc":"2.0","result":`, message.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(text(tt.in))
			if tt.want == message.KindMalformed {
				if err == nil {
					t.Fatalf("expect violation, got %s", msg.Kind())
				}
				var v *ViolationError
				if !errors.As(err, &v) {
					t.Fatalf("expect *ViolationError, got %T", err)
				}
				if string(v.Data) != tt.in {
					t.Errorf("violation data = %q, want raw payload", v.Data)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Kind() != tt.want {
				t.Errorf("got %s, want %s", msg.Kind(), tt.want)
			}
		})
	}
}

func TestDecodeRequestFields(t *testing.T) {
	msg, err := Decode(text(`{"jsonrpc":"2.0","id":"x-1","method":"add","params":[1,{"b":2}]}`))
	if err != nil {
		t.Fatal(err)
	}
	req := msg.(*message.Request)
	if req.ID != message.StringID("x-1") {
		t.Errorf("got id %v", req.ID)
	}
	if req.Method != "add" {
		t.Errorf("got method %q", req.Method)
	}
	if len(req.Params) != 2 || string(req.Params[0]) != "1" || string(req.Params[1]) != `{"b":2}` {
		t.Errorf("got params %q", req.Params)
	}
}

func TestDecodeErrorPassesDataThrough(t *testing.T) {
	msg, err := Decode(text(`{"jsonrpc":"2.0","error":{"code":7,"message":"m","data":[1,"two"]}}`))
	if err != nil {
		t.Fatal(err)
	}
	e := msg.(*message.ErrorMessage)
	if e.Error.Code != 7 || e.Error.Message != "m" || string(e.Error.Data) != `[1,"two"]` {
		t.Fatalf("unexpected error envelope: %+v", e.Error)
	}
}

func TestDecodeEmptyParams(t *testing.T) {
	msg, err := Decode(text(`{"jsonrpc":"2.0","id":1,"method":"ping","params":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if p := msg.(*message.Request).Params; p == nil || len(p) != 0 {
		t.Fatalf("expect empty non-nil params, got %#v", p)
	}
}

func TestDecodeBinaryFrame(t *testing.T) {
	_, err := Decode(transport.Frame{Data: []byte(`{"jsonrpc":"2.0","result":1}`)})
	if !errors.Is(err, ErrNonTextFrame) {
		t.Fatalf("expect ErrNonTextFrame, got %v", err)
	}
}

func TestDecodeRequestRejectsOtherKinds(t *testing.T) {
	for _, in := range []string{
		`{"jsonrpc":"2.0","result":3}`,
		`{"jsonrpc":"2.0","method":"tick","params":[]}`,
		`{"jsonrpc":"2.0","error":{"code":1,"message":"m"}}`,
	} {
		_, err := DecodeRequest(text(in))
		var v *ViolationError
		if !errors.As(err, &v) {
			t.Fatalf("%s: expect violation, got %v", in, err)
		}
		if string(v.Data) != in {
			t.Errorf("%s: violation data = %q", in, v.Data)
		}
	}

	req, err := DecodeRequest(text(`{"jsonrpc":"2.0","id":1,"method":"add","params":[1,2]}`))
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != "add" {
		t.Fatalf("got method %q", req.Method)
	}
}

func TestCloseReasonString(t *testing.T) {
	if CloseUnsupportedData.String() != "UnsupportedData" || CloseUnsupportedData.Code() != 1003 {
		t.Errorf("unexpected UnsupportedData: %s %d", CloseUnsupportedData, CloseUnsupportedData.Code())
	}
	if CloseInternalError.String() != "InternalError" || CloseInternalError.Code() != 1011 {
		t.Errorf("unexpected InternalError: %s %d", CloseInternalError, CloseInternalError.Code())
	}
	if got := CloseReason(4000).String(); got != "CloseReason(4000)" {
		t.Errorf("got %q", got)
	}
}
