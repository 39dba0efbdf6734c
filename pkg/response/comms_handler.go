package response

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/intent-bridge/pkg/commsutil"
)

const commsHandlerLogPrefix = "response:comms_handler"

// ResultEvent is published for every fire-and-forget delivery.
type ResultEvent struct {
	ID     string      `json:"id"`
	Ok     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// CommsHandler publishes deliveries as ResultEvents on a COMMS subject.
type CommsHandler struct {
	nc      *comms.Conn
	subject string
}

var _ Handler = &CommsHandler{}

// NewCommsHandler creates a CommsHandler publishing to subject.
func NewCommsHandler(nc *comms.Conn, subject string) *CommsHandler {
	return &CommsHandler{nc: nc, subject: subject}
}

// SendResponse publishes a successful result.
func (h *CommsHandler) SendResponse(id string, result interface{}) {
	h.publish(&ResultEvent{ID: id, Ok: true, Result: result})
}

// SendError publishes a failed result.
func (h *CommsHandler) SendError(id string, message string) {
	h.publish(&ResultEvent{ID: id, Ok: false, Error: message})
}

func (h *CommsHandler) publish(event *ResultEvent) {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode result id=%s: %v", commsHandlerLogPrefix, event.ID, err))
		return
	}
	if err := h.nc.Publish(h.subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsHandlerLogPrefix, h.subject, err))
		return
	}
	slog.Debug(fmt.Sprintf("%s - Published result id=%s ok=%t", commsHandlerLogPrefix, event.ID, event.Ok))
}
