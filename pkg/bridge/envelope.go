// Package bridge sends request envelopes to the host process and correlates the
// host's responses back to the suspended callers.
package bridge

import (
	"github.com/morezero/intent-bridge/pkg/commsutil"
)

// Request is the outbound envelope written to the host.
type Request struct {
	Operation  string      `json:"operation"`
	Parameters interface{} `json:"parameters"`
	ID         string      `json:"id"`
}

// Response is the inbound envelope written by the host. A non-nil Error selects
// the failure path; otherwise Result (possibly null) is the value.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *string     `json:"error,omitempty"`
}

// SuccessResponse builds a result envelope for id.
func SuccessResponse(id string, result interface{}) *Response {
	return &Response{ID: id, Result: result}
}

// ErrorResponse builds an error envelope for id.
func ErrorResponse(id, message string) *Response {
	return &Response{ID: id, Error: &message}
}

// Value is a resolved host result.
type Value struct {
	raw   interface{}
	codec commsutil.Codec
}

// NewValue wraps a decoded result. A nil codec means JSON.
func NewValue(raw interface{}, codec commsutil.Codec) *Value {
	if codec == nil {
		codec = commsutil.JSONCodec{}
	}
	return &Value{raw: raw, codec: codec}
}

// Raw returns the decoded result as produced by the codec.
func (v *Value) Raw() interface{} {
	if v == nil {
		return nil
	}
	return v.raw
}

// IsNull reports whether the host resolved with no value.
func (v *Value) IsNull() bool {
	return v == nil || v.raw == nil
}

// Into decodes the result into target. A null result leaves target untouched.
func (v *Value) Into(target interface{}) error {
	if v.IsNull() {
		return nil
	}
	data, err := v.codec.Encode(v.raw)
	if err != nil {
		return err
	}
	return v.codec.Decode(data, target)
}
