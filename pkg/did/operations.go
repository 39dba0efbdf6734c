package did

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morezero/intent-bridge/pkg/bridge"
	"github.com/morezero/intent-bridge/pkg/intent"
)

const logPrefix = "did:operations"

// Sender is the direct-return transport.
type Sender interface {
	Send(ctx context.Context, operation string, parameters interface{}) (*bridge.Value, error)
}

// NewOperationsParams holds parameters for NewOperations.
type NewOperationsParams struct {
	Sender     Sender
	Identity   IdentityProvider
	Documents  DocumentParser
	Dispatcher *intent.Dispatcher
	InFlight   *intent.InFlight
}

// Operations implements every identity operation on top of the bridge.
type Operations struct {
	sender     Sender
	identity   IdentityProvider
	documents  DocumentParser
	dispatcher *intent.Dispatcher
	inflight   *intent.InFlight
}

// NewOperations creates Operations. A nil Documents uses JSONDocuments.
func NewOperations(params NewOperationsParams) *Operations {
	docs := params.Documents
	if docs == nil {
		docs = JSONDocuments{}
	}
	inflight := params.InFlight
	if inflight == nil {
		inflight = intent.NewInFlight()
	}
	return &Operations{
		sender:     params.Sender,
		identity:   params.Identity,
		documents:  docs,
		dispatcher: params.Dispatcher,
		inflight:   inflight,
	}
}

// RegisterResponseProcessors installs the processors for every fire-and-forget
// operation. Both hand the host payload through unchanged.
func RegisterResponseProcessors(d *intent.Dispatcher) {
	d.RegisterProcessor(intent.TypeRequestCredentials, intent.PassThrough)
	d.RegisterProcessor(intent.TypeImportCredentials, intent.PassThrough)
}

// GetCredentials asks the host for a presentation matching query.
func (o *Operations) GetCredentials(ctx context.Context, query interface{}) (Presentation, error) {
	slog.Debug(fmt.Sprintf("%s - getCredentials request", logPrefix))

	v, err := o.sender.Send(ctx, OpGetCredentials, query)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	data, err := json.Marshal(v.Raw())
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode presentation: %w", logPrefix, err)
	}
	return o.documents.ParsePresentation(data)
}

// RequestCredentials runs a credential disclosure request. A nil presentation
// means the user cancelled.
func (o *Operations) RequestCredentials(ctx context.Context, request interface{}) (Presentation, error) {
	var resp struct {
		Presentation string `json:"presentation"`
	}
	ok, err := o.postURLIntent(ctx, URLRequestCredentials, map[string]interface{}{"request": request}, &resp)
	if err != nil || !ok || resp.Presentation == "" {
		if err == nil {
			slog.Warn(fmt.Sprintf("%s - missing presentation, the operation was maybe cancelled", logPrefix))
		}
		return nil, err
	}
	return o.documents.ParsePresentation([]byte(resp.Presentation))
}

// ImportCredentials asks the host to store credentials. A nil slice means the
// user cancelled.
func (o *Operations) ImportCredentials(ctx context.Context, credentials []Credential, opts *ImportOptions) ([]ImportedCredential, error) {
	docs, err := genericDocuments(credentials)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"credentials": docs}
	if opts != nil && opts.ForceToPublishCredentials {
		params["forceToPublishCredentials"] = true
	}

	var resp struct {
		ImportedCredentials []string `json:"importedcredentials"`
	}
	ok, err := o.postURLIntent(ctx, URLImportCredentials, params, &resp)
	if err != nil || !ok || resp.ImportedCredentials == nil {
		if err == nil {
			slog.Warn(fmt.Sprintf("%s - missing result data, the operation was maybe cancelled", logPrefix))
		}
		return nil, err
	}

	imported := make([]ImportedCredential, 0, len(resp.ImportedCredentials))
	for _, u := range resp.ImportedCredentials {
		id, err := o.documents.ParseDIDURL(u)
		if err != nil {
			return nil, err
		}
		imported = append(imported, ImportedCredential{ID: id})
	}
	return imported, nil
}

// SignData asks the host to sign data with the user's DID.
func (o *Operations) SignData(ctx context.Context, data string, jwtExtra interface{}, signatureFieldName string) (*SignedData, error) {
	params := map[string]interface{}{"data": data}
	if jwtExtra != nil {
		params["jwtExtra"] = jwtExtra
	}
	if signatureFieldName != "" {
		params["signatureFieldName"] = signatureFieldName
	}

	v, err := o.sender.Send(ctx, OpSignData, params)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	var signed SignedData
	if err := v.Into(&signed); err != nil {
		slog.Warn(fmt.Sprintf("%s - malformed signData response: %v", logPrefix, err))
		return nil, nil
	}
	return &signed, nil
}

// DeleteCredentials asks the host to delete credentials and returns the deleted ids.
func (o *Operations) DeleteCredentials(ctx context.Context, credentialIDs []string, opts *DeleteOptions) ([]string, error) {
	params := map[string]interface{}{"credentialsids": credentialIDs}
	if opts != nil {
		params["options"] = opts
	}

	var resp struct {
		DeletedCredentialsIDs []string `json:"deletedcredentialsids"`
	}
	ok, err := o.postURLIntent(ctx, URLDeleteCredentials, params, &resp)
	if err != nil || !ok {
		return nil, err
	}
	return resp.DeletedCredentialsIDs, nil
}

// GenerateAppIDCredential asks the host for an application identity credential.
func (o *Operations) GenerateAppIDCredential(ctx context.Context, appInstanceDID, appDID string) (Credential, error) {
	return o.issue(ctx, URLGenerateAppIDCredential, map[string]interface{}{
		"appinstancedid": appInstanceDID,
		"appdid":         appDID,
	})
}

// UpdateHiveVaultAddress asks the host to switch the user's storage vault.
func (o *Operations) UpdateHiveVaultAddress(ctx context.Context, vaultAddress, displayName string) (*HiveVaultStatus, error) {
	var resp struct {
		Status HiveVaultStatus `json:"status"`
	}
	ok, err := o.postURLIntent(ctx, URLUpdateHiveVaultAddress, map[string]interface{}{
		"address": vaultAddress,
		"name":    displayName,
	}, &resp)
	if err != nil || !ok || resp.Status == "" {
		return nil, err
	}
	return &resp.Status, nil
}

// IssueCredential asks the host to issue a credential to holder.
func (o *Operations) IssueCredential(ctx context.Context, holder string, types []string, subject map[string]interface{}, identifier, expirationDate string) (Credential, error) {
	params := map[string]interface{}{
		"subjectdid": holder,
		"types":      types,
		"properties": subject,
	}
	if identifier != "" {
		params["identifier"] = identifier
	}
	if expirationDate != "" {
		params["expirationDate"] = expirationDate
	}
	return o.issue(ctx, URLIssueCredential, params)
}

// GenerateHiveBackupCredential asks the host for a vault backup credential.
func (o *Operations) GenerateHiveBackupCredential(ctx context.Context, sourceHiveNodeDID, targetHiveNodeDID, targetNodeURL string) (Credential, error) {
	return o.issue(ctx, URLGenerateHiveBackupCredential, map[string]interface{}{
		"sourceHiveNodeDID": sourceHiveNodeDID,
		"targetHiveNodeDID": targetHiveNodeDID,
		"targetNodeURL":     targetNodeURL,
	})
}

// issue runs a URL intent whose answer is a serialized credential.
func (o *Operations) issue(ctx context.Context, url string, params map[string]interface{}) (Credential, error) {
	var resp struct {
		Credential string `json:"credential"`
	}
	ok, err := o.postURLIntent(ctx, url, params, &resp)
	if err != nil || !ok || resp.Credential == "" {
		return nil, err
	}
	return o.documents.ParseCredential([]byte(resp.Credential))
}

// postURLIntent sends a URL-style intent, adding the caller DID when one is
// available. It reports false when the host answered with nothing usable.
func (o *Operations) postURLIntent(ctx context.Context, url string, params map[string]interface{}, out interface{}) (bool, error) {
	if caller := o.applicationDID(); caller != "" {
		params["caller"] = caller
	}
	slog.Debug(fmt.Sprintf("%s - url intent %s", logPrefix, url))

	v, err := o.sender.Send(ctx, OpURLIntent, &URLIntent{URL: url, Params: params})
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	if err := v.Into(out); err != nil {
		slog.Warn(fmt.Sprintf("%s - malformed response for %s: %v", logPrefix, url, err))
		return false, nil
	}
	return true, nil
}

// applicationDID returns the caller identity, or empty when none is set.
func (o *Operations) applicationDID() string {
	if o.identity == nil {
		return ""
	}
	did, err := o.identity.ApplicationDID()
	if err != nil {
		return ""
	}
	return did
}

// genericDocuments decodes raw documents so every codec can carry them.
func genericDocuments(docs []json.RawMessage) ([]interface{}, error) {
	out := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		var v interface{}
		if err := json.Unmarshal(d, &v); err != nil {
			return nil, fmt.Errorf("%s - invalid credential document: %w", logPrefix, err)
		}
		out = append(out, v)
	}
	return out, nil
}
