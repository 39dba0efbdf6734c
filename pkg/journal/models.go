package journal

import "time"

// TableName is the journal table created by the migrations.
const TableName = "intent_dispatches"

// Dispatch represents a row in the intent_dispatches table.
type Dispatch struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	IntentType string    `json:"intent_type"`
	Caller     *string   `json:"caller,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      *string   `json:"error,omitempty"`
	Payload    []byte    `json:"payload,omitempty"`
	Created    time.Time `json:"created"`
}

// OutcomeCount is one row of CountByOutcome.
type OutcomeCount struct {
	Outcome string `json:"outcome"`
	Count   int64  `json:"count"`
}
