package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/intent-bridge/pkg/intent"
	"github.com/morezero/intent-bridge/pkg/response"
)

const observerLogPrefix = "journal:observer"

// Store persists dispatch records. Repository implements it.
type Store interface {
	InsertDispatch(ctx context.Context, params InsertDispatchParams) (*Dispatch, error)
}

var _ Store = (*Repository)(nil)

// Observer journals every dispatch. Write failures are logged and never
// affect delivery.
type Observer struct {
	store   Store
	timeout time.Duration
}

// NewObserverParams holds parameters for NewObserver.
type NewObserverParams struct {
	Store Store
	// WriteTimeout defaults to 5s.
	WriteTimeout time.Duration
}

// NewObserver creates an Observer writing to params.Store.
func NewObserver(params NewObserverParams) *Observer {
	timeout := params.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Observer{store: params.Store, timeout: timeout}
}

var _ intent.Observer = (*Observer)(nil)

// ObserveDispatch implements intent.Observer.
func (o *Observer) ObserveDispatch(ctx context.Context, entity *intent.Entity, outcome response.Outcome, procErr error) {
	params := InsertDispatchParams{
		RequestID:  entity.ID,
		IntentType: string(entity.Type),
		Outcome:    outcome.String(),
	}
	if entity.RequestPayload.Caller != "" {
		caller := entity.RequestPayload.Caller
		params.Caller = &caller
	}
	if procErr != nil {
		msg := procErr.Error()
		params.Error = &msg
	}
	if entity.ResponsePayload != nil {
		payload, err := json.Marshal(entity.ResponsePayload)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - payload not journaled id=%s: %v", observerLogPrefix, entity.ID, err))
		} else {
			params.Payload = payload
		}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	if _, err := o.store.InsertDispatch(writeCtx, params); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to journal id=%s: %v", observerLogPrefix, entity.ID, err))
	}
}

// NoOpObserver discards every dispatch. Used when no database is configured.
type NoOpObserver struct{}

var _ intent.Observer = NoOpObserver{}

func (NoOpObserver) ObserveDispatch(context.Context, *intent.Entity, response.Outcome, error) {}
