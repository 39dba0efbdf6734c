package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/intent-bridge/pkg/bridge"
	"github.com/morezero/intent-bridge/pkg/did"
	"github.com/morezero/intent-bridge/pkg/response"
)

const connectorLogPrefix = "connector:connector"

const (
	// ConnectorName is the connector's registry name.
	ConnectorName = "essentialsiab"
	// ConnectorDisplayName is shown to users choosing a connector.
	ConnectorDisplayName = "Elastos Essentials In App Browser"
)

var (
	// ErrNotConfigured is returned by every operation before Configure.
	ErrNotConfigured = errors.New("connector: not configured, call Configure first")
	// ErrNotImplemented is returned by host features this connector does not offer.
	ErrNotImplemented = errors.New("connector: not implemented")
)

// ModuleRefs are the cooperating modules the facade delegates to.
type ModuleRefs struct {
	// Identity is required.
	Identity did.IdentityProvider
	// Documents defaults to did.JSONDocuments.
	Documents did.DocumentParser
}

// Connector is the two-phase facade: created unconfigured by New, usable after
// Configure.
type Connector struct {
	rt *Runtime

	mu  sync.RWMutex
	ops *did.Operations
}

// New creates an unconfigured Connector and installs the response processors.
func New(rt *Runtime) *Connector {
	did.RegisterResponseProcessors(rt.Dispatcher)
	return &Connector{rt: rt}
}

// Configure stores refs and makes the operations usable. Calling it again
// replaces the refs.
func (c *Connector) Configure(refs ModuleRefs) error {
	if refs.Identity == nil {
		return fmt.Errorf("%s - identity module is required", connectorLogPrefix)
	}
	ops := did.NewOperations(did.NewOperationsParams{
		Sender:     c.rt.Bridge,
		Identity:   refs.Identity,
		Documents:  refs.Documents,
		Dispatcher: c.rt.Dispatcher,
		InFlight:   c.rt.InFlight,
	})

	c.mu.Lock()
	c.ops = ops
	c.mu.Unlock()
	slog.Info(fmt.Sprintf("%s - configured", connectorLogPrefix))
	return nil
}

// Configured reports whether Configure has succeeded.
func (c *Connector) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ops != nil
}

func (c *Connector) operations() (*did.Operations, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ops == nil {
		return nil, ErrNotConfigured
	}
	return c.ops, nil
}

func (c *Connector) Name() string        { return ConnectorName }
func (c *Connector) DisplayName() string { return ConnectorDisplayName }

// RegisterResponseHandler sets the consumer of fire-and-forget results. It
// replaces any previous handler.
func (c *Connector) RegisterResponseHandler(h response.Handler) {
	c.rt.Sink.SetHandler(h)
}

// SendResponse feeds a host success envelope into the bridge.
func (c *Connector) SendResponse(id string, result interface{}) bool {
	return c.rt.Bridge.Resolve(bridge.SuccessResponse(id, result))
}

// SendError feeds a host error envelope into the bridge.
func (c *Connector) SendError(id, message string) bool {
	return c.rt.Bridge.Resolve(bridge.ErrorResponse(id, message))
}

func (c *Connector) GetCredentials(ctx context.Context, query interface{}) (did.Presentation, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.GetCredentials(ctx, query)
}

func (c *Connector) RequestCredentials(ctx context.Context, request interface{}) (did.Presentation, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.RequestCredentials(ctx, request)
}

// RequestCredentialsV2 returns once the flow has started; the presentation is
// delivered to the response handler under requestID.
func (c *Connector) RequestCredentialsV2(ctx context.Context, requestID string, request interface{}) error {
	ops, err := c.operations()
	if err != nil {
		return err
	}
	return ops.RequestCredentialsV2(ctx, requestID, request)
}

func (c *Connector) IssueCredential(ctx context.Context, holder string, types []string, subject map[string]interface{}, identifier, expirationDate string) (did.Credential, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.IssueCredential(ctx, holder, types, subject, identifier, expirationDate)
}

func (c *Connector) ImportCredentials(ctx context.Context, credentials []did.Credential, opts *did.ImportOptions) ([]did.ImportedCredential, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.ImportCredentials(ctx, credentials, opts)
}

// ImportCredentialsV2 returns once the flow has started; the imported ids are
// delivered to the response handler under requestID.
func (c *Connector) ImportCredentialsV2(ctx context.Context, requestID string, credentials []did.Credential, opts *did.ImportOptions) error {
	ops, err := c.operations()
	if err != nil {
		return err
	}
	return ops.ImportCredentialsV2(ctx, requestID, credentials, opts)
}

func (c *Connector) SignData(ctx context.Context, data string, jwtExtra interface{}, signatureFieldName string) (*did.SignedData, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.SignData(ctx, data, jwtExtra, signatureFieldName)
}

func (c *Connector) DeleteCredentials(ctx context.Context, credentialIDs []string, opts *did.DeleteOptions) ([]string, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.DeleteCredentials(ctx, credentialIDs, opts)
}

func (c *Connector) GenerateAppIDCredential(ctx context.Context, appInstanceDID, appDID string) (did.Credential, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.GenerateAppIDCredential(ctx, appInstanceDID, appDID)
}

func (c *Connector) UpdateHiveVaultAddress(ctx context.Context, vaultAddress, displayName string) (*did.HiveVaultStatus, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.UpdateHiveVaultAddress(ctx, vaultAddress, displayName)
}

func (c *Connector) GenerateHiveBackupCredential(ctx context.Context, sourceHiveNodeDID, targetHiveNodeDID, targetNodeURL string) (did.Credential, error) {
	ops, err := c.operations()
	if err != nil {
		return nil, err
	}
	return ops.GenerateHiveBackupCredential(ctx, sourceHiveNodeDID, targetHiveNodeDID, targetNodeURL)
}

// Unimplemented host features.

func (c *Connector) RequestPublish(ctx context.Context) error               { return ErrNotImplemented }
func (c *Connector) ImportCredentialContext(ctx context.Context) error      { return ErrNotImplemented }
func (c *Connector) Pay(ctx context.Context) error                          { return ErrNotImplemented }
func (c *Connector) VoteForDPoS(ctx context.Context) error                  { return ErrNotImplemented }
func (c *Connector) VoteForCRCouncil(ctx context.Context) error             { return ErrNotImplemented }
func (c *Connector) VoteForCRProposal(ctx context.Context) error            { return ErrNotImplemented }
func (c *Connector) SendSmartContractTransaction(ctx context.Context) error { return ErrNotImplemented }
