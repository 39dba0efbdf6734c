package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/intent-bridge/pkg/bridge"
	"github.com/morezero/intent-bridge/pkg/connector"
	"github.com/morezero/intent-bridge/pkg/did"
	"github.com/morezero/intent-bridge/pkg/intent"
)

const logPrefix = "gateway:gateway"

// Facade is the connector surface the gateway calls into.
type Facade interface {
	Name() string
	DisplayName() string
	GetCredentials(ctx context.Context, query interface{}) (did.Presentation, error)
	RequestCredentials(ctx context.Context, request interface{}) (did.Presentation, error)
	RequestCredentialsV2(ctx context.Context, requestID string, request interface{}) error
	IssueCredential(ctx context.Context, holder string, types []string, subject map[string]interface{}, identifier, expirationDate string) (did.Credential, error)
	ImportCredentials(ctx context.Context, credentials []did.Credential, opts *did.ImportOptions) ([]did.ImportedCredential, error)
	ImportCredentialsV2(ctx context.Context, requestID string, credentials []did.Credential, opts *did.ImportOptions) error
	SignData(ctx context.Context, data string, jwtExtra interface{}, signatureFieldName string) (*did.SignedData, error)
	DeleteCredentials(ctx context.Context, credentialIDs []string, opts *did.DeleteOptions) ([]string, error)
	GenerateAppIDCredential(ctx context.Context, appInstanceDID, appDID string) (did.Credential, error)
	UpdateHiveVaultAddress(ctx context.Context, vaultAddress, displayName string) (*did.HiveVaultStatus, error)
	GenerateHiveBackupCredential(ctx context.Context, sourceHiveNodeDID, targetHiveNodeDID, targetNodeURL string) (did.Credential, error)
}

var _ Facade = (*connector.Connector)(nil)

// unimplementedMethods are host features the connector does not offer.
var unimplementedMethods = map[string]bool{
	"requestPublish":               true,
	"importCredentialContext":      true,
	"pay":                          true,
	"voteForDPoS":                  true,
	"voteForCRCouncil":             true,
	"voteForCRProposal":            true,
	"sendSmartContractTransaction": true,
}

// InvokeObserver is told about every invocation. code is empty on success.
type InvokeObserver interface {
	ObserveInvoke(method, code string, elapsed time.Duration)
}

type noopInvokeObserver struct{}

func (noopInvokeObserver) ObserveInvoke(string, string, time.Duration) {}

// Gateway routes invoke envelopes to the facade.
type Gateway struct {
	facade   Facade
	observer InvokeObserver
	// timeout bounds each invocation; zero leaves calls unbounded.
	timeout time.Duration

	running sync.WaitGroup
}

// NewGatewayParams holds parameters for NewGateway.
type NewGatewayParams struct {
	Facade Facade
	// Observer is optional.
	Observer InvokeObserver
	// InvokeTimeout is disabled when zero.
	InvokeTimeout time.Duration
}

// NewGateway creates a new Gateway.
func NewGateway(params NewGatewayParams) *Gateway {
	observer := params.Observer
	if observer == nil {
		observer = noopInvokeObserver{}
	}
	return &Gateway{facade: params.Facade, observer: observer, timeout: params.InvokeTimeout}
}

// Invoke routes req to the matching facade method and returns the reply envelope.
func (g *Gateway) Invoke(ctx context.Context, req *InvokeRequest) *InvokeResponse {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, req.ID))

	start := time.Now()
	ctx, cancel := g.invocationContext(ctx, req.Ctx)
	defer cancel()

	result, err := g.route(ctx, req)
	if err != nil {
		resp := errorToResponse(req.ID, err)
		g.observer.ObserveInvoke(req.Method, resp.Error.Code, time.Since(start))
		return resp
	}
	g.observer.ObserveInvoke(req.Method, "", time.Since(start))
	return &InvokeResponse{ID: req.ID, Ok: true, Result: result}
}

func (g *Gateway) route(ctx context.Context, req *InvokeRequest) (interface{}, error) {
	switch req.Method {
	case "getDisplayName":
		return &DisplayNameResult{Name: g.facade.Name(), DisplayName: g.facade.DisplayName()}, nil
	case "getCredentials":
		var p getCredentialsParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nullable(g.facade.GetCredentials(ctx, p.Query))
	case "requestCredentials":
		var p requestCredentialsParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nullable(g.facade.RequestCredentials(ctx, p.Request))
	case "requestCredentialsV2":
		var p requestCredentialsParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nil, g.facade.RequestCredentialsV2(ctx, p.RequestID, p.Request)
	case "issueCredential":
		var p issueCredentialParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nullable(g.facade.IssueCredential(ctx, p.Holder, p.Types, p.Subject, p.Identifier, p.ExpirationDate))
	case "importCredentials":
		var p importCredentialsParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		imported, err := g.facade.ImportCredentials(ctx, p.Credentials, p.Options)
		if err != nil || imported == nil {
			return nil, err
		}
		return imported, nil
	case "importCredentialsV2":
		var p importCredentialsParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nil, g.facade.ImportCredentialsV2(ctx, p.RequestID, p.Credentials, p.Options)
	case "signData":
		var p signDataParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		signed, err := g.facade.SignData(ctx, p.Data, p.JWTExtra, p.SignatureFieldName)
		if err != nil || signed == nil {
			return nil, err
		}
		return signed, nil
	case "deleteCredentials":
		var p deleteCredentialsParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		deleted, err := g.facade.DeleteCredentials(ctx, p.CredentialIDs, p.Options)
		if err != nil || deleted == nil {
			return nil, err
		}
		return deleted, nil
	case "generateAppIdCredential":
		var p generateAppIDCredentialParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nullable(g.facade.GenerateAppIDCredential(ctx, p.AppInstanceDID, p.AppDID))
	case "updateHiveVaultAddress":
		var p updateHiveVaultAddressParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		status, err := g.facade.UpdateHiveVaultAddress(ctx, p.VaultAddress, p.DisplayName)
		if err != nil || status == nil {
			return nil, err
		}
		return map[string]interface{}{"status": *status}, nil
	case "generateHiveBackupCredential":
		var p generateHiveBackupCredentialParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nullable(g.facade.GenerateHiveBackupCredential(ctx, p.SourceHiveNodeDID, p.TargetHiveNodeDID, p.TargetNodeURL))
	default:
		if unimplementedMethods[req.Method] {
			return nil, connector.ErrNotImplemented
		}
		return nil, &methodNotFoundError{method: req.Method}
	}
}

// MessageHandler returns a NATS handler that decodes invoke envelopes and
// replies on msg.Reply. Each message is served on its own goroutine under ctx,
// so a call waiting on the host never holds up the subscription.
func (g *Gateway) MessageHandler(ctx context.Context) comms.MsgHandler {
	return func(msg *comms.Msg) {
		g.running.Add(1)
		go func() {
			defer g.running.Done()
			g.serve(ctx, msg)
		}()
	}
}

// Wait blocks until every message accepted by MessageHandler has been answered.
func (g *Gateway) Wait() {
	g.running.Wait()
}

func (g *Gateway) serve(ctx context.Context, msg *comms.Msg) {
	var resp *InvokeResponse
	var req InvokeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
		resp = errorResponse("", CodeInvalidRequest, "Failed to decode request", false)
	} else {
		resp = g.Invoke(ctx, &req)
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond id=%s: %v", logPrefix, resp.ID, err))
	}
}

// invocationContext applies the gateway timeout, shortened by a client
// deadline when the client asks for less.
func (g *Gateway) invocationContext(ctx context.Context, invCtx *InvocationContext) (context.Context, context.CancelFunc) {
	timeout := g.timeout
	if invCtx != nil {
		ms := invCtx.DeadlineMs
		if ms <= 0 {
			ms = invCtx.TimeoutMs
		}
		if client := time.Duration(ms) * time.Millisecond; client > 0 && (timeout <= 0 || client < timeout) {
			timeout = client
		}
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// --- helpers ---

type methodNotFoundError struct {
	method string
}

func (e *methodNotFoundError) Error() string {
	return fmt.Sprintf("Unknown method: %s", e.method)
}

type invalidArgumentError struct {
	method string
	err    error
}

func (e *invalidArgumentError) Error() string {
	return fmt.Sprintf("Failed to parse %s params: %v", e.method, e.err)
}

func (e *invalidArgumentError) Unwrap() error { return e.err }

func decodeParams(req *InvokeRequest, v interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return &invalidArgumentError{method: req.Method, err: err}
	}
	return nil
}

// nullable keeps a nil document a JSON null instead of an empty raw message.
func nullable(doc json.RawMessage, err error) (interface{}, error) {
	if err != nil || doc == nil {
		return nil, err
	}
	return doc, nil
}

func errorResponse(id, code, message string, retryable bool) *InvokeResponse {
	return &InvokeResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

func errorToResponse(id string, err error) *InvokeResponse {
	var notFound *methodNotFoundError
	var invalid *invalidArgumentError
	var hostErr *bridge.HostError

	switch {
	case errors.As(err, &notFound):
		return errorResponse(id, CodeMethodNotFound, err.Error(), false)
	case errors.As(err, &invalid):
		return errorResponse(id, CodeInvalidArgument, err.Error(), false)
	case errors.Is(err, connector.ErrNotConfigured):
		return errorResponse(id, CodeNotConfigured, err.Error(), false)
	case errors.Is(err, connector.ErrNotImplemented):
		return errorResponse(id, CodeNotImplemented, err.Error(), false)
	case errors.Is(err, intent.ErrEmptyRequestID):
		return errorResponse(id, CodeInvalidArgument, err.Error(), false)
	case errors.Is(err, intent.ErrDuplicateRequestID):
		return errorResponse(id, CodeDuplicateRequestID, err.Error(), false)
	case errors.As(err, &hostErr):
		resp := errorResponse(id, CodeHostError, hostErr.Message, false)
		resp.Error.Details = map[string]string{"operation": hostErr.Operation}
		return resp
	case errors.Is(err, bridge.ErrChannelClosed):
		return errorResponse(id, CodeChannelClosed, err.Error(), true)
	case errors.Is(err, context.DeadlineExceeded):
		return errorResponse(id, CodeTimeout, err.Error(), true)
	default:
		return errorResponse(id, CodeInternalError, err.Error(), true)
	}
}
