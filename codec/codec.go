// Package codec serializes envelopes onto the wire and parses inbound payloads.
//
// Only JSON text is carried; binary frames are rejected before they reach a codec.
package codec

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// JSON is the codec every connection uses.
var JSON Codec = &JSONCodec{}
