// Package gateway routes invoke envelopes from sandboxed code to the connector.
package gateway

import (
	"encoding/json"

	"github.com/morezero/intent-bridge/pkg/did"
)

// InvokeRequest is the JSON envelope sandboxed code publishes on the invoke subject.
type InvokeRequest struct {
	ID     string             `json:"id"`
	Method string             `json:"method"`
	Params json.RawMessage    `json:"params,omitempty"`
	Ctx    *InvocationContext `json:"ctx,omitempty"`
}

// InvokeResponse is the reply to an InvokeRequest.
type InvokeResponse struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable bool        `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	DeadlineMs    int    `json:"deadlineMs,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// Error codes.
const (
	CodeMethodNotFound     = "METHOD_NOT_FOUND"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeNotConfigured      = "NOT_CONFIGURED"
	CodeNotImplemented     = "NOT_IMPLEMENTED"
	CodeDuplicateRequestID = "DUPLICATE_REQUEST_ID"
	CodeHostError          = "HOST_ERROR"
	CodeChannelClosed      = "CHANNEL_CLOSED"
	CodeTimeout            = "TIMEOUT"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Method parameter shapes.

type getCredentialsParams struct {
	Query interface{} `json:"query"`
}

type requestCredentialsParams struct {
	RequestID string      `json:"requestId,omitempty"`
	Request   interface{} `json:"request"`
}

type issueCredentialParams struct {
	Holder         string                 `json:"holder"`
	Types          []string               `json:"types"`
	Subject        map[string]interface{} `json:"subject"`
	Identifier     string                 `json:"identifier,omitempty"`
	ExpirationDate string                 `json:"expirationDate,omitempty"`
}

type importCredentialsParams struct {
	RequestID   string             `json:"requestId,omitempty"`
	Credentials []json.RawMessage  `json:"credentials"`
	Options     *did.ImportOptions `json:"options,omitempty"`
}

type signDataParams struct {
	Data               string      `json:"data"`
	JWTExtra           interface{} `json:"jwtExtra,omitempty"`
	SignatureFieldName string      `json:"signatureFieldName,omitempty"`
}

type deleteCredentialsParams struct {
	CredentialIDs []string           `json:"credentialIds"`
	Options       *did.DeleteOptions `json:"options,omitempty"`
}

type generateAppIDCredentialParams struct {
	AppInstanceDID string `json:"appInstanceDid"`
	AppDID         string `json:"appDid"`
}

type updateHiveVaultAddressParams struct {
	VaultAddress string `json:"vaultAddress"`
	DisplayName  string `json:"displayName"`
}

type generateHiveBackupCredentialParams struct {
	SourceHiveNodeDID string `json:"sourceHiveNodeDid"`
	TargetHiveNodeDID string `json:"targetHiveNodeDid"`
	TargetNodeURL     string `json:"targetNodeUrl"`
}

// DisplayNameResult is the result of getDisplayName.
type DisplayNameResult struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}
