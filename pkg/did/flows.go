package did

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/intent-bridge/pkg/intent"
)

// RequestCredentialsV2 starts a credential request whose result is delivered
// later to the registered response handler under requestID.
func (o *Operations) RequestCredentialsV2(ctx context.Context, requestID string, request interface{}) error {
	return o.startFlow(ctx, requestID, intent.TypeRequestCredentials, func(ctx context.Context) (interface{}, error) {
		vp, err := o.RequestCredentials(ctx, request)
		if err != nil || vp == nil {
			return nil, err
		}
		return vp, nil
	})
}

// ImportCredentialsV2 starts a credential import whose result is delivered
// later to the registered response handler under requestID.
func (o *Operations) ImportCredentialsV2(ctx context.Context, requestID string, credentials []Credential, opts *ImportOptions) error {
	return o.startFlow(ctx, requestID, intent.TypeImportCredentials, func(ctx context.Context) (interface{}, error) {
		imported, err := o.ImportCredentials(ctx, credentials, opts)
		if err != nil || imported == nil {
			return nil, err
		}
		return imported, nil
	})
}

// startFlow claims requestID, then runs the request and dispatches its outcome
// in the background. The flow is not bound to ctx's cancellation.
func (o *Operations) startFlow(ctx context.Context, requestID string, t intent.Type, run func(context.Context) (interface{}, error)) error {
	if err := o.inflight.Begin(requestID); err != nil {
		return err
	}
	slog.Debug(fmt.Sprintf("%s - started %s flow id=%s", logPrefix, t, requestID))

	flowCtx := context.WithoutCancel(ctx)
	go func() {
		defer o.inflight.End(requestID)

		result, err := run(flowCtx)
		entity := &intent.Entity{
			ID:   requestID,
			Type: t,
			RequestPayload: intent.RequestPayload{
				Caller:    o.applicationDID(),
				RequestID: requestID,
			},
			ResponsePayload: result,
		}
		if err != nil {
			o.dispatcher.DispatchFailure(flowCtx, entity, err)
			return
		}
		o.dispatcher.Dispatch(flowCtx, entity)
	}()
	return nil
}
