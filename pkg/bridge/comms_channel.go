package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	comms "github.com/nats-io/nats.go"
)

const commsChannelLogPrefix = "bridge:comms_channel"

// CommsChannelOpts configures CommsChannel.
type CommsChannelOpts struct {
	// RequestSubject is where request envelopes are published for the host.
	RequestSubject string
	// ResponseSubject is where the host publishes response envelopes.
	ResponseSubject string
}

// CommsChannel is a Channel over COMMS subjects.
type CommsChannel struct {
	nc              *comms.Conn
	requestSubject  string
	responseSubject string

	mu  sync.Mutex
	sub *comms.Subscription
}

var _ Channel = &CommsChannel{}
var _ ClosedNotifier = &CommsChannel{}

// NewCommsChannel creates a CommsChannel on an established connection.
func NewCommsChannel(nc *comms.Conn, opts CommsChannelOpts) *CommsChannel {
	return &CommsChannel{
		nc:              nc,
		requestSubject:  opts.RequestSubject,
		responseSubject: opts.ResponseSubject,
	}
}

// Publish writes data to the request subject.
func (c *CommsChannel) Publish(_ context.Context, data []byte) error {
	return c.nc.Publish(c.requestSubject, data)
}

// Listen subscribes handler to the response subject.
func (c *CommsChannel) Listen(handler func(data []byte)) error {
	sub, err := c.nc.Subscribe(c.responseSubject, func(msg *comms.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", commsChannelLogPrefix, c.responseSubject, err)
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - Listening for host responses on %s", commsChannelLogPrefix, c.responseSubject))
	return nil
}

// NotifyClosed runs fn once the connection is permanently closed. A closed
// handler already set on the connection keeps running before fn.
func (c *CommsChannel) NotifyClosed(fn func()) {
	prev := c.nc.ClosedHandler()
	c.nc.SetClosedHandler(func(nc *comms.Conn) {
		if prev != nil {
			prev(nc)
		}
		slog.Warn(fmt.Sprintf("%s - COMMS connection closed, failing pending requests", commsChannelLogPrefix))
		fn()
	})
}

// Close unsubscribes from the response subject. The connection is left to its owner.
func (c *CommsChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return nil
	}
	err := c.sub.Unsubscribe()
	c.sub = nil
	if errors.Is(err, comms.ErrConnectionClosed) {
		return nil
	}
	return err
}
