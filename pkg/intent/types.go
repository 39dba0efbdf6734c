// Package intent routes completed host intents through per-type processors to
// the response sink.
package intent

// Type tags an intent with the operation that produced it.
type Type string

const (
	TypeRequestCredentials Type = "REQUEST_CREDENTIALS"
	TypeImportCredentials  Type = "IMPORT_CREDENTIALS"
)

// Types lists every known intent type.
var Types = []Type{TypeRequestCredentials, TypeImportCredentials}

// Valid reports whether t belongs to the known set.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// RequestPayload is the caller context captured when the flow started.
type RequestPayload struct {
	Caller    string `json:"caller,omitempty"`
	RequestID string `json:"requestId"`
}

// Entity is a completed intent awaiting dispatch. It is consumed once.
type Entity struct {
	ID              string         `json:"id"`
	Type            Type           `json:"type"`
	RequestPayload  RequestPayload `json:"requestPayload"`
	ResponsePayload interface{}    `json:"responsePayload"`
}
