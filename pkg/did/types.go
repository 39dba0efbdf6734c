// Package did builds the request envelopes for identity and credential
// operations and runs their direct-return and fire-and-forget flows.
package did

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Host operation names.
const (
	OpGetCredentials = "elastos_getCredentials"
	OpSignData       = "elastos_signData"
	OpURLIntent      = "elastos_essentials_url_intent"
)

// URL-style intent targets.
const (
	URLRequestCredentials           = "https://did.elastos.net/requestcredentials"
	URLImportCredentials            = "https://did.elastos.net/credimport"
	URLDeleteCredentials            = "https://did.elastos.net/creddelete"
	URLGenerateAppIDCredential      = "https://did.elastos.net/appidcredissue"
	URLUpdateHiveVaultAddress       = "https://did.elastos.net/sethiveprovider"
	URLIssueCredential              = "https://did.elastos.net/credissue"
	URLGenerateHiveBackupCredential = "https://did.elastos.net/hivebackupcredissue"
)

// Presentation is a verifiable presentation document.
type Presentation = json.RawMessage

// Credential is a verifiable credential document.
type Credential = json.RawMessage

// ImportedCredential identifies a credential stored by the host.
type ImportedCredential struct {
	ID string `json:"id"`
}

// SignedData is the host's signature over caller data.
type SignedData struct {
	SigningDID string `json:"signingDID,omitempty"`
	PublicKey  string `json:"publicKey,omitempty"`
	Signature  string `json:"signature"`
	JWTToken   string `json:"jwtToken,omitempty"`
}

// HiveVaultStatus is the host's answer to a vault address update.
type HiveVaultStatus string

// ImportOptions tunes ImportCredentials.
type ImportOptions struct {
	ForceToPublishCredentials bool `json:"forceToPublishCredentials,omitempty"`
}

// DeleteOptions tunes DeleteCredentials.
type DeleteOptions struct {
	ForceToPublishCredentials bool `json:"forceToPublishCredentials,omitempty"`
}

// URLIntent is the parameter shape of OpURLIntent.
type URLIntent struct {
	URL    string                 `json:"url"`
	Params map[string]interface{} `json:"params"`
}

// IdentityProvider reports the identity of the sandboxed application.
type IdentityProvider interface {
	// ApplicationDID returns an error when no application DID is set.
	ApplicationDID() (string, error)
}

// DocumentParser turns host-produced documents into the caller's representation.
type DocumentParser interface {
	ParsePresentation(data []byte) (Presentation, error)
	ParseCredential(data []byte) (Credential, error)
	ParseDIDURL(url string) (string, error)
}

// ErrNoApplicationDID is returned by StaticIdentity when no DID is configured.
var ErrNoApplicationDID = errors.New("did: no application DID set")

// StaticIdentity serves a fixed application DID.
type StaticIdentity string

// ApplicationDID returns the configured DID.
func (s StaticIdentity) ApplicationDID() (string, error) {
	if s == "" {
		return "", ErrNoApplicationDID
	}
	return string(s), nil
}

// JSONDocuments is the default DocumentParser. Documents stay raw JSON; DID URLs
// must use the did scheme.
type JSONDocuments struct{}

var _ DocumentParser = JSONDocuments{}

func (JSONDocuments) ParsePresentation(data []byte) (Presentation, error) {
	return parseDocument("presentation", data)
}

func (JSONDocuments) ParseCredential(data []byte) (Credential, error) {
	return parseDocument("credential", data)
}

func (JSONDocuments) ParseDIDURL(url string) (string, error) {
	if !strings.HasPrefix(url, "did:") {
		return "", fmt.Errorf("%s - invalid DID URL %q", logPrefix, url)
	}
	return url, nil
}

func parseDocument(kind string, data []byte) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s - invalid %s document", logPrefix, kind)
	}
	out := make(json.RawMessage, len(data))
	copy(out, data)
	return out, nil
}
