// Package protocol validates inbound payloads against the JSON-RPC 2.0 envelope
// grammar and names the reasons a connection may be closed.
//
// Classification is by structural shape. The checks run in a fixed order and
// the first match wins, so a payload that fits two shapes always resolves the
// same way:
//
//  1. jsonrpc must be the string "2.0" (otherwise malformed)
//  2. Request:      method string, id string or integer, params an array
//  3. Response:     result present (null counts)
//  4. Notification: method string, params an array
//  5. ErrorMessage: error object with integer code and string message
//
// Anything else is malformed. Every malformed payload is reported as a
// *ViolationError carrying the offending bytes.
package protocol
