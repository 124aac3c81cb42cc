package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"wsrpc/codec"
	"wsrpc/message"
	"wsrpc/transport"
)

// Decode parses one inbound frame and classifies it.
func Decode(f transport.Frame) (message.Message, error) {
	if !f.Text {
		return nil, violation(ErrNonTextFrame.Error(), f.Data, ErrNonTextFrame)
	}

	var obj map[string]json.RawMessage
	if err := codec.JSON.Decode(f.Data, &obj); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return nil, violation(ErrNotObject.Error(), f.Data, ErrNotObject)
		}
		return nil, violation("payload is not valid JSON", f.Data, err)
	}
	if obj == nil {
		return nil, violation(ErrNotObject.Error(), f.Data, ErrNotObject)
	}

	msg, err := Classify(obj)
	if err != nil {
		var v *ViolationError
		if errors.As(err, &v) {
			v.Data = f.Data
		}
		return nil, err
	}
	return msg, nil
}

// DecodeRequest is Decode for a server that only accepts requests: any other
// well-formed envelope is also a violation.
func DecodeRequest(f transport.Frame) (*message.Request, error) {
	msg, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return RequireRequest(msg, f.Data)
}

// RequireRequest narrows a decoded msg to a request. data is the raw payload
// attached to the violation otherwise.
func RequireRequest(msg message.Message, data []byte) (*message.Request, error) {
	req, ok := msg.(*message.Request)
	if !ok {
		return nil, violation(
			fmt.Sprintf("received JSON-RPC %s but only requests are accepted", msg.Kind()),
			data, nil)
	}
	return req, nil
}

// Classify decides which envelope obj is. A payload matching none of them
// yields a *ViolationError.
func Classify(obj map[string]json.RawMessage) (message.Message, error) {
	if !hasVersion(obj) {
		return nil, violation(`payload does not carry jsonrpc "2.0"`, nil, nil)
	}
	if req, ok := asRequest(obj); ok {
		return req, nil
	}
	if resp, ok := asResponse(obj); ok {
		return resp, nil
	}
	if n, ok := asNotification(obj); ok {
		return n, nil
	}
	if e, ok := asError(obj); ok {
		return e, nil
	}
	return nil, violation("payload matches no JSON-RPC envelope", nil, nil)
}

func hasVersion(obj map[string]json.RawMessage) bool {
	var v string
	return decodeString(obj["jsonrpc"], &v) && v == message.Version
}

func asRequest(obj map[string]json.RawMessage) (*message.Request, bool) {
	var method string
	if !decodeString(obj["method"], &method) {
		return nil, false
	}
	raw, ok := obj["id"]
	if !ok {
		return nil, false
	}
	var id message.ID
	if err := id.UnmarshalJSON(raw); err != nil {
		return nil, false
	}
	params, ok := decodeParams(obj["params"])
	if !ok {
		return nil, false
	}
	return &message.Request{JSONRPC: message.Version, ID: id, Method: method, Params: params}, true
}

func asResponse(obj map[string]json.RawMessage) (*message.Response, bool) {
	result, ok := obj["result"]
	if !ok {
		return nil, false
	}
	return &message.Response{JSONRPC: message.Version, Result: result, ID: optionalID(obj)}, true
}

func asNotification(obj map[string]json.RawMessage) (*message.Notification, bool) {
	var method string
	if !decodeString(obj["method"], &method) {
		return nil, false
	}
	params, ok := decodeParams(obj["params"])
	if !ok {
		return nil, false
	}
	return &message.Notification{JSONRPC: message.Version, Method: method, Params: params}, true
}

func asError(obj map[string]json.RawMessage) (*message.ErrorMessage, bool) {
	raw, ok := obj["error"]
	if !ok || jsonType(raw) != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	code, ok := decodeInt(fields["code"])
	if !ok {
		return nil, false
	}
	var msg string
	if !decodeString(fields["message"], &msg) {
		return nil, false
	}
	return &message.ErrorMessage{
		JSONRPC: message.Version,
		Error:   message.ErrorObject{Code: code, Message: msg, Data: fields["data"]},
		ID:      optionalID(obj),
	}, true
}

func optionalID(obj map[string]json.RawMessage) *message.ID {
	raw, ok := obj["id"]
	if !ok {
		return nil
	}
	var id message.ID
	if err := id.UnmarshalJSON(raw); err != nil {
		return nil
	}
	return &id
}

// decodeParams accepts only an array; a keyed object is rejected.
func decodeParams(raw json.RawMessage) ([]json.RawMessage, bool) {
	if jsonType(raw) != '[' {
		return nil, false
	}
	var params []json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false
	}
	if params == nil {
		params = []json.RawMessage{}
	}
	return params, true
}

func decodeString(raw json.RawMessage, dst *string) bool {
	if jsonType(raw) != '"' {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func decodeInt(raw json.RawMessage) (int, bool) {
	if jsonType(raw) != '0' {
		return 0, false
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// jsonType reports the kind of a raw value by its first byte: one of
// '"', '[', '{', 'n', 't', 'f', or '0' for any number. Absent values yield 0.
func jsonType(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	switch c := raw[0]; c {
	case '"', '[', '{', 'n', 't', 'f':
		return c
	default:
		return '0'
	}
}
