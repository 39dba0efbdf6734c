package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nuid"

	"github.com/morezero/intent-bridge/pkg/commsutil"
)

const logPrefix = "bridge:bridge"

// ErrChannelClosed is returned to every pending and future caller once the
// channel to the host is gone.
var ErrChannelClosed = errors.New("bridge: channel closed")

// HostError carries an error reported by the host. Error returns the host's
// message verbatim.
type HostError struct {
	Operation string
	ID        string
	Message   string
}

func (e *HostError) Error() string {
	return e.Message
}

// Channel is the messaging channel to the host process.
type Channel interface {
	// Publish writes one encoded request envelope.
	Publish(ctx context.Context, data []byte) error
	// Listen registers the handler for inbound response envelopes.
	Listen(handler func(data []byte)) error
	Close() error
}

// ClosedNotifier is implemented by channels that can report the host going away.
type ClosedNotifier interface {
	NotifyClosed(fn func())
}

// NewBridgeParams holds parameters for New.
type NewBridgeParams struct {
	Channel Channel
	// Codec defaults to JSON.
	Codec commsutil.Codec
	// IDGenerator defaults to nuid.
	IDGenerator func() string
}

type outcome struct {
	value *Value
	err   error
}

type pendingRecord struct {
	operation string
	done      chan outcome
}

// Bridge is the direct-return transport: every Send suspends until the host
// answers with the matching correlation id.
type Bridge struct {
	channel   Channel
	codec     commsutil.Codec
	newID     func() string
	closeOnce sync.Once

	mu      sync.Mutex
	pending map[string]*pendingRecord
	closed  bool
}

// New creates a Bridge and starts listening on the channel.
func New(params NewBridgeParams) (*Bridge, error) {
	if params.Channel == nil {
		return nil, fmt.Errorf("%s - channel is required", logPrefix)
	}
	codec := params.Codec
	if codec == nil {
		codec = commsutil.JSONCodec{}
	}
	newID := params.IDGenerator
	if newID == nil {
		newID = nuid.Next
	}

	b := &Bridge{
		channel: params.Channel,
		codec:   codec,
		newID:   newID,
		pending: make(map[string]*pendingRecord),
	}

	if err := params.Channel.Listen(b.HandleInbound); err != nil {
		return nil, fmt.Errorf("%s - failed to listen for responses: %w", logPrefix, err)
	}
	if n, ok := params.Channel.(ClosedNotifier); ok {
		n.NotifyClosed(b.failPending)
	}
	return b, nil
}

// Send writes an envelope for operation and blocks until the host resolves it.
// No timeout is applied; ctx only stops the wait and drops the pending record.
func (b *Bridge) Send(ctx context.Context, operation string, parameters interface{}) (*Value, error) {
	id := b.newID()
	data, err := b.codec.Encode(&Request{Operation: operation, Parameters: parameters, ID: id})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode %s request: %w", logPrefix, operation, err)
	}

	rec := &pendingRecord{operation: operation, done: make(chan outcome, 1)}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrChannelClosed
	}
	if _, exists := b.pending[id]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("%s - correlation id %s is already pending", logPrefix, id)
	}
	b.pending[id] = rec
	b.mu.Unlock()

	slog.Debug(fmt.Sprintf("%s - send operation=%s id=%s", logPrefix, operation, id))

	if err := b.channel.Publish(ctx, data); err != nil {
		b.remove(id)
		return nil, fmt.Errorf("%s - failed to send %s: %w", logPrefix, operation, err)
	}

	select {
	case out := <-rec.done:
		return out.value, out.err
	case <-ctx.Done():
		if !b.remove(id) {
			// Resolved concurrently; the outcome is already buffered.
			out := <-rec.done
			return out.value, out.err
		}
		return nil, ctx.Err()
	}
}

// HandleInbound decodes a response envelope and resolves its pending record.
// Frames that cannot be decoded or carry no id are dropped.
func (b *Bridge) HandleInbound(data []byte) {
	var resp Response
	if err := b.codec.Decode(data, &resp); err != nil {
		slog.Warn(fmt.Sprintf("%s - dropping undecodable response: %v", logPrefix, err))
		return
	}
	if resp.ID == "" {
		slog.Warn(fmt.Sprintf("%s - dropping response without id", logPrefix))
		return
	}
	b.Resolve(&resp)
}

// Resolve completes the pending record matching resp.ID. It returns false when
// no such record exists, so an id never resolves twice.
func (b *Bridge) Resolve(resp *Response) bool {
	b.mu.Lock()
	rec, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()

	if !ok {
		slog.Debug(fmt.Sprintf("%s - no pending request for id=%s", logPrefix, resp.ID))
		return false
	}

	if resp.Error != nil {
		slog.Debug(fmt.Sprintf("%s - rejected operation=%s id=%s", logPrefix, rec.operation, resp.ID))
		rec.done <- outcome{err: &HostError{Operation: rec.operation, ID: resp.ID, Message: *resp.Error}}
		return true
	}

	slog.Debug(fmt.Sprintf("%s - resolved operation=%s id=%s", logPrefix, rec.operation, resp.ID))
	rec.done <- outcome{value: NewValue(resp.Result, b.codec)}
	return true
}

// Pending returns the number of requests waiting for the host.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close rejects every pending request with ErrChannelClosed and closes the channel.
func (b *Bridge) Close() error {
	b.failPending()
	var err error
	b.closeOnce.Do(func() {
		err = b.channel.Close()
	})
	return err
}

func (b *Bridge) failPending() {
	b.mu.Lock()
	b.closed = true
	recs := b.pending
	b.pending = make(map[string]*pendingRecord)
	b.mu.Unlock()

	if len(recs) > 0 {
		slog.Warn(fmt.Sprintf("%s - channel closed, rejecting %d pending requests", logPrefix, len(recs)))
	}
	for _, rec := range recs {
		rec.done <- outcome{err: ErrChannelClosed}
	}
}

func (b *Bridge) remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[id]; !ok {
		return false
	}
	delete(b.pending, id)
	return true
}
