package message

import (
	"encoding/json"
	"fmt"
)

// Reserved JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Server-defined codes, -32000 to -32099.
const (
	CodeServerError    = -32000
	CodeRequestTimeout = -32001
	CodeRateLimited    = -32002
)

// ErrorObject is the "error" member of an ErrorMessage. Business logic returns
// it to choose the code, message and data sent back to the peer.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func NewError(code int, message string) *ErrorObject {
	return &ErrorObject{Code: code, Message: message}
}

// NewErrorWithData attaches data to the error. Data that cannot be encoded is
// dropped rather than failing the reply.
func NewErrorWithData(code int, message string, data any) *ErrorObject {
	e := NewError(code, message)
	if b, err := marshal(data); err == nil {
		e.Data = b
	}
	return e
}
