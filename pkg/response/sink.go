// Package response delivers fire-and-forget results to the single registered handler.
package response

import (
	"fmt"
	"log/slog"
	"sync"
)

const logPrefix = "response:sink"

// Outcome reports what happened to a delivery.
type Outcome int

const (
	// OutcomeDelivered means the active handler received the result or error.
	OutcomeDelivered Outcome = iota
	// OutcomeDroppedNoHandler means no handler was registered; the result is lost.
	OutcomeDroppedNoHandler
	// OutcomeDroppedNoProcessor means no processor exists for the intent type.
	OutcomeDroppedNoProcessor
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDroppedNoHandler:
		return "dropped_no_handler"
	case OutcomeDroppedNoProcessor:
		return "dropped_no_processor"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Handler consumes fire-and-forget results.
type Handler interface {
	SendResponse(id string, result interface{})
	SendError(id string, message string)
}

// Sink holds zero or one active Handler. Registering a handler replaces the
// previous one; there is no stacking.
type Sink struct {
	mu      sync.RWMutex
	handler Handler
}

// NewSink creates a Sink with no handler.
func NewSink() *Sink {
	return &Sink{}
}

// SetHandler replaces the active handler. A nil handler leaves the sink without one.
func (s *Sink) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
	if h == nil {
		slog.Info(fmt.Sprintf("%s - Cleared response handler", logPrefix))
		return
	}
	slog.Info(fmt.Sprintf("%s - Registered response handler", logPrefix))
}

// HasHandler reports whether a handler is active.
func (s *Sink) HasHandler() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler != nil
}

// DeliverResult pushes a result for id to the active handler.
func (s *Sink) DeliverResult(id string, value interface{}) Outcome {
	h := s.current()
	if h == nil {
		slog.Debug(fmt.Sprintf("%s - no handler, dropping result id=%s", logPrefix, id))
		return OutcomeDroppedNoHandler
	}
	h.SendResponse(id, value)
	return OutcomeDelivered
}

// DeliverError pushes an error message for id to the active handler.
func (s *Sink) DeliverError(id, message string) Outcome {
	h := s.current()
	if h == nil {
		slog.Debug(fmt.Sprintf("%s - no handler, dropping error id=%s", logPrefix, id))
		return OutcomeDroppedNoHandler
	}
	h.SendError(id, message)
	return OutcomeDelivered
}

func (s *Sink) current() Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}
