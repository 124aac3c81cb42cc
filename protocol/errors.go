package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNonTextFrame = errors.New("expected text payload, received binary frame")
	ErrNotObject    = errors.New("payload is not a JSON object")
)

// ViolationError reports a payload that breaks the protocol contract. Data
// holds the offending payload for diagnostics.
type ViolationError struct {
	Message string
	Data    []byte
	Err     error
}

func (e *ViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ViolationError) Unwrap() error {
	return e.Err
}

func violation(msg string, data []byte, cause error) *ViolationError {
	return &ViolationError{Message: msg, Data: data, Err: cause}
}
