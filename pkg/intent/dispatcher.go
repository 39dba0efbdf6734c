package intent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/intent-bridge/pkg/response"
)

const logPrefix = "intent:dispatcher"

// Processor transforms a completed intent into the value delivered to the handler.
type Processor func(ctx context.Context, entity *Entity) (interface{}, error)

// Sink receives dispatched results.
type Sink interface {
	DeliverResult(id string, value interface{}) response.Outcome
	DeliverError(id, message string) response.Outcome
}

// Observer is notified after every dispatch. procErr is the processor or host
// failure that was delivered as an error, if any.
type Observer interface {
	ObserveDispatch(ctx context.Context, entity *Entity, outcome response.Outcome, procErr error)
}

// Dispatcher maps intent types to processors and forwards their output to a Sink.
type Dispatcher struct {
	sink      Sink
	observers []Observer

	mu         sync.RWMutex
	processors map[Type]Processor
}

// NewDispatcher creates a Dispatcher delivering to sink.
func NewDispatcher(sink Sink, observers ...Observer) *Dispatcher {
	return &Dispatcher{
		sink:       sink,
		observers:  observers,
		processors: make(map[Type]Processor),
	}
}

// RegisterProcessor installs fn for t, replacing any previous processor.
func (d *Dispatcher) RegisterProcessor(t Type, fn Processor) {
	d.mu.Lock()
	d.processors[t] = fn
	d.mu.Unlock()
	slog.Debug(fmt.Sprintf("%s - registered processor type=%s", logPrefix, t))
}

// HasProcessor reports whether a processor is installed for t.
func (d *Dispatcher) HasProcessor(t Type) bool {
	_, ok := d.processor(t)
	return ok
}

// Dispatch runs the processor for entity.Type and delivers its output. Entities
// without a processor are dropped without any delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, entity *Entity) response.Outcome {
	fn, ok := d.processor(entity.Type)
	if !ok {
		slog.Debug(fmt.Sprintf("%s - no processor for type=%s, dropping id=%s", logPrefix, entity.Type, entity.ID))
		d.notify(ctx, entity, response.OutcomeDroppedNoProcessor, nil)
		return response.OutcomeDroppedNoProcessor
	}

	value, err := runProcessor(ctx, fn, entity)
	var outcome response.Outcome
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - processor failed type=%s id=%s: %v", logPrefix, entity.Type, entity.ID, err))
		outcome = d.sink.DeliverError(entity.ID, err.Error())
	} else {
		outcome = d.sink.DeliverResult(entity.ID, value)
	}

	slog.Debug(fmt.Sprintf("%s - dispatched type=%s id=%s outcome=%s", logPrefix, entity.Type, entity.ID, outcome))
	d.notify(ctx, entity, outcome, err)
	return outcome
}

// DispatchFailure delivers cause as an error for an intent whose host request
// failed. Like Dispatch, nothing is delivered when the type has no processor.
func (d *Dispatcher) DispatchFailure(ctx context.Context, entity *Entity, cause error) response.Outcome {
	if _, ok := d.processor(entity.Type); !ok {
		d.notify(ctx, entity, response.OutcomeDroppedNoProcessor, cause)
		return response.OutcomeDroppedNoProcessor
	}

	outcome := d.sink.DeliverError(entity.ID, cause.Error())
	slog.Debug(fmt.Sprintf("%s - dispatched failure type=%s id=%s outcome=%s", logPrefix, entity.Type, entity.ID, outcome))
	d.notify(ctx, entity, outcome, cause)
	return outcome
}

func (d *Dispatcher) processor(t Type) (Processor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.processors[t]
	return fn, ok
}

func (d *Dispatcher) notify(ctx context.Context, entity *Entity, outcome response.Outcome, err error) {
	for _, o := range d.observers {
		o.ObserveDispatch(ctx, entity, outcome, err)
	}
}

// runProcessor converts a processor panic into an error.
func runProcessor(ctx context.Context, fn Processor, entity *Entity) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s - processor panic: %v", logPrefix, r)
		}
	}()
	return fn(ctx, entity)
}

// PassThrough returns the host payload unchanged.
func PassThrough(_ context.Context, entity *Entity) (interface{}, error) {
	return entity.ResponsePayload, nil
}
