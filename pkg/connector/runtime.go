// Package connector is the externally visible facade. A Runtime owns the
// correlation state; a Connector exposes the identity operations on top of it.
package connector

import (
	"fmt"
	"log/slog"

	"github.com/morezero/intent-bridge/pkg/bridge"
	"github.com/morezero/intent-bridge/pkg/commsutil"
	"github.com/morezero/intent-bridge/pkg/intent"
	"github.com/morezero/intent-bridge/pkg/response"
)

const logPrefix = "connector:runtime"

// RuntimeParams holds parameters for NewRuntime.
type RuntimeParams struct {
	Channel     bridge.Channel
	Codec       commsutil.Codec
	IDGenerator func() string
	// Observers are notified of every dispatch (metrics, journal).
	Observers []intent.Observer
}

// Runtime owns the bridge, the response sink, the intent dispatcher and the
// in-flight tracker of one connection to the host. Runtimes share nothing.
type Runtime struct {
	Bridge     *bridge.Bridge
	Sink       *response.Sink
	Dispatcher *intent.Dispatcher
	InFlight   *intent.InFlight
}

// NewRuntime wires a Runtime over params.Channel.
func NewRuntime(params RuntimeParams) (*Runtime, error) {
	b, err := bridge.New(bridge.NewBridgeParams{
		Channel:     params.Channel,
		Codec:       params.Codec,
		IDGenerator: params.IDGenerator,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create bridge: %w", logPrefix, err)
	}

	sink := response.NewSink()
	return &Runtime{
		Bridge:     b,
		Sink:       sink,
		Dispatcher: intent.NewDispatcher(sink, params.Observers...),
		InFlight:   intent.NewInFlight(),
	}, nil
}

// Close rejects pending requests, closes the channel and waits for running
// fire-and-forget flows to finish dispatching.
func (rt *Runtime) Close() error {
	err := rt.Bridge.Close()
	rt.InFlight.Wait()
	if err != nil {
		return fmt.Errorf("%s - failed to close channel: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - runtime closed", logPrefix))
	return nil
}
