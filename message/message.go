// Package message defines the JSON-RPC 2.0 envelopes exchanged over a connection.
//
// The wire format carries no explicit kind discriminator. Each envelope shape is
// its own type, and the protocol package decides which one a payload is:
//
//	Request:      {"jsonrpc":"2.0","id":<string|number>,"method":<string>,"params":[...]}
//	Notification: {"jsonrpc":"2.0","method":<string>,"params":[...]}
//	Response:     {"jsonrpc":"2.0","result":<any>}
//	ErrorMessage: {"jsonrpc":"2.0","error":{"code":<int>,"message":<string>,"data":<any>}}
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the only protocol tag accepted in either direction.
const Version = "2.0"

// Kind is the classification of a decoded payload.
type Kind int

const (
	KindMalformed Kind = iota
	KindRequest
	KindResponse
	KindNotification
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	case KindError:
		return "error"
	default:
		return "malformed"
	}
}

// Message is implemented by the four envelope variants.
type Message interface {
	Kind() Kind
}

// Request is a call that expects exactly one Response or ErrorMessage.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      ID                `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func (*Request) Kind() Kind { return KindRequest }

// Notification is request-shaped but carries no id and expects no reply.
type Notification struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func (*Notification) Kind() Kind { return KindNotification }

// Response carries a successful result. A nil Result encodes as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	ID      *ID             `json:"id,omitempty"`
}

func (*Response) Kind() Kind { return KindResponse }

// ErrorMessage carries a failed result.
type ErrorMessage struct {
	JSONRPC string      `json:"jsonrpc"`
	Error   ErrorObject `json:"error"`
	ID      *ID         `json:"id,omitempty"`
}

func (*ErrorMessage) Kind() Kind { return KindError }

// NewRequest builds a request, encoding each param positionally.
func NewRequest(id ID, method string, params ...any) (*Request, error) {
	raw := make([]json.RawMessage, 0, len(params))
	for i, p := range params {
		b, err := marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode param %d: %w", i, err)
		}
		raw = append(raw, b)
	}
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: raw}, nil
}

// NewResponse wraps result for the request identified by id.
func NewResponse(id ID, result any) (*Response, error) {
	b, err := marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Response{JSONRPC: Version, Result: b, ID: &id}, nil
}

// NewErrorMessage wraps e for the request identified by id.
func NewErrorMessage(id ID, e *ErrorObject) *ErrorMessage {
	return &ErrorMessage{JSONRPC: Version, Error: *e, ID: &id}
}

// marshal is json.Marshal without HTML escaping, so embedded values reach
// the peer as the business logic produced them.
func marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
