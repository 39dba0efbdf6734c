package connector

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/morezero/intent-bridge/pkg/bridge"
	"github.com/morezero/intent-bridge/pkg/did"
	"github.com/morezero/intent-bridge/pkg/intent"
	"github.com/morezero/intent-bridge/pkg/response"
)

const connectorTestPrefix = "connector:connector_test"

// hostChannel answers every published request through the connector's
// inbound path, the way the host would.
type hostChannel struct {
	mu        sync.Mutex
	published []bridge.Request
	answer    func(req bridge.Request) (interface{}, *string)
	conn      *Connector
	closed    bool
}

func (h *hostChannel) Publish(_ context.Context, data []byte) error {
	var req bridge.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	h.mu.Lock()
	h.published = append(h.published, req)
	answer, conn := h.answer, h.conn
	h.mu.Unlock()

	if answer != nil {
		go func() {
			result, errMsg := answer(req)
			if errMsg != nil {
				conn.SendError(req.ID, *errMsg)
				return
			}
			conn.SendResponse(req.ID, result)
		}()
	}
	return nil
}

func (h *hostChannel) Listen(func([]byte)) error { return nil }

func (h *hostChannel) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

func (h *hostChannel) publishedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.published)
}

func newTestConnector(t *testing.T, answer func(req bridge.Request) (interface{}, *string)) (*Connector, *hostChannel) {
	t.Helper()
	ch := &hostChannel{answer: answer}
	rt, err := NewRuntime(RuntimeParams{Channel: ch})
	if err != nil {
		t.Fatalf("%s - failed to create runtime: %v", connectorTestPrefix, err)
	}
	conn := New(rt)
	ch.conn = conn
	t.Cleanup(func() { _ = rt.Close() })
	return conn, ch
}

func TestConnector_UnconfiguredFailsBeforeSend(t *testing.T) {
	conn, ch := newTestConnector(t, nil)
	ctx := context.Background()

	calls := []struct {
		name string
		call func() error
	}{
		{"GetCredentials", func() error { _, err := conn.GetCredentials(ctx, nil); return err }},
		{"RequestCredentials", func() error { _, err := conn.RequestCredentials(ctx, nil); return err }},
		{"RequestCredentialsV2", func() error { return conn.RequestCredentialsV2(ctx, "r1", nil) }},
		{"ImportCredentials", func() error { _, err := conn.ImportCredentials(ctx, nil, nil); return err }},
		{"ImportCredentialsV2", func() error { return conn.ImportCredentialsV2(ctx, "i1", nil, nil) }},
		{"SignData", func() error { _, err := conn.SignData(ctx, "x", nil, ""); return err }},
		{"DeleteCredentials", func() error { _, err := conn.DeleteCredentials(ctx, nil, nil); return err }},
		{"IssueCredential", func() error { _, err := conn.IssueCredential(ctx, "h", nil, nil, "", ""); return err }},
		{"GenerateAppIDCredential", func() error { _, err := conn.GenerateAppIDCredential(ctx, "a", "b"); return err }},
		{"UpdateHiveVaultAddress", func() error { _, err := conn.UpdateHiveVaultAddress(ctx, "a", "b"); return err }},
		{"GenerateHiveBackupCredential", func() error { _, err := conn.GenerateHiveBackupCredential(ctx, "a", "b", "c"); return err }},
	}

	for _, c := range calls {
		if err := c.call(); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("%s - %s: expected ErrNotConfigured, got %v", connectorTestPrefix, c.name, err)
		}
	}
	if n := ch.publishedCount(); n != 0 {
		t.Errorf("%s - expected nothing published, got %d", connectorTestPrefix, n)
	}
	if conn.Configured() {
		t.Errorf("%s - expected unconfigured connector", connectorTestPrefix)
	}
}

func TestConnector_ConfigureRequiresIdentity(t *testing.T) {
	conn, _ := newTestConnector(t, nil)

	if err := conn.Configure(ModuleRefs{}); err == nil {
		t.Fatalf("%s - expected error for missing identity", connectorTestPrefix)
	}
	if conn.Configured() {
		t.Errorf("%s - failed Configure must not configure", connectorTestPrefix)
	}
}

func TestConnector_SignDataRoundTrip(t *testing.T) {
	conn, ch := newTestConnector(t, func(req bridge.Request) (interface{}, *string) {
		return map[string]interface{}{"signature": "sig-" + req.ID}, nil
	})
	if err := conn.Configure(ModuleRefs{Identity: did.StaticIdentity("did:elastos:app")}); err != nil {
		t.Fatalf("%s - configure failed: %v", connectorTestPrefix, err)
	}

	signed, err := conn.SignData(context.Background(), "payload", nil, "")
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", connectorTestPrefix, err)
	}
	if signed == nil || signed.Signature != "sig-"+ch.published[0].ID {
		t.Errorf("%s - unexpected signature %+v", connectorTestPrefix, signed)
	}
	if ch.published[0].Operation != did.OpSignData {
		t.Errorf("%s - expected %s, got %s", connectorTestPrefix, did.OpSignData, ch.published[0].Operation)
	}
}

func TestConnector_HostErrorPassesThrough(t *testing.T) {
	msg := "denied"
	conn, _ := newTestConnector(t, func(bridge.Request) (interface{}, *string) { return nil, &msg })
	_ = conn.Configure(ModuleRefs{Identity: did.StaticIdentity("did:elastos:app")})

	_, err := conn.GetCredentials(context.Background(), nil)
	var he *bridge.HostError
	if !errors.As(err, &he) || he.Error() != "denied" {
		t.Errorf("%s - expected host error 'denied', got %v", connectorTestPrefix, err)
	}
}

func TestConnector_ReconfigureReplacesIdentity(t *testing.T) {
	callers := make(chan interface{}, 2)
	conn, _ := newTestConnector(t, func(req bridge.Request) (interface{}, *string) {
		params := req.Parameters.(map[string]interface{})["params"].(map[string]interface{})
		callers <- params["caller"]
		return nil, nil
	})

	_ = conn.Configure(ModuleRefs{Identity: did.StaticIdentity("did:elastos:first")})
	_, _ = conn.RequestCredentials(context.Background(), nil)
	_ = conn.Configure(ModuleRefs{Identity: did.StaticIdentity("did:elastos:second")})
	_, _ = conn.RequestCredentials(context.Background(), nil)

	if got := <-callers; got != "did:elastos:first" {
		t.Errorf("%s - expected first caller, got %v", connectorTestPrefix, got)
	}
	if got := <-callers; got != "did:elastos:second" {
		t.Errorf("%s - expected second caller, got %v", connectorTestPrefix, got)
	}
}

func TestConnector_RequestCredentialsV2DeliversToHandler(t *testing.T) {
	conn, _ := newTestConnector(t, func(bridge.Request) (interface{}, *string) {
		return map[string]interface{}{"presentation": `{"id":"vp"}`}, nil
	})
	_ = conn.Configure(ModuleRefs{Identity: did.StaticIdentity("did:elastos:app")})

	got := make(chan string, 1)
	conn.RegisterResponseHandler(response.NewCallbackHandler(
		func(id string, result interface{}) { got <- id },
		func(id string, message string) { t.Errorf("%s - unexpected error %s", connectorTestPrefix, message) },
	))

	if err := conn.RequestCredentialsV2(context.Background(), "req-1", map[string]interface{}{}); err != nil {
		t.Fatalf("%s - unexpected error: %v", connectorTestPrefix, err)
	}
	select {
	case id := <-got:
		if id != "req-1" {
			t.Errorf("%s - expected req-1, got %s", connectorTestPrefix, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - timed out waiting for delivery", connectorTestPrefix)
	}
}

func TestConnector_ProcessorsRegistered(t *testing.T) {
	conn, _ := newTestConnector(t, nil)
	for _, tp := range intent.Types {
		if !conn.rt.Dispatcher.HasProcessor(tp) {
			t.Errorf("%s - expected processor for %s", connectorTestPrefix, tp)
		}
	}
}

func TestConnector_SendResponseUnknownID(t *testing.T) {
	conn, _ := newTestConnector(t, nil)
	if conn.SendResponse("nope", 1) {
		t.Errorf("%s - expected false for unknown id", connectorTestPrefix)
	}
	if conn.SendError("nope", "x") {
		t.Errorf("%s - expected false for unknown id", connectorTestPrefix)
	}
}

func TestConnector_NamesAndUnimplemented(t *testing.T) {
	conn, _ := newTestConnector(t, nil)
	ctx := context.Background()

	if conn.Name() != "essentialsiab" || conn.DisplayName() != "Elastos Essentials In App Browser" {
		t.Errorf("%s - unexpected names %q %q", connectorTestPrefix, conn.Name(), conn.DisplayName())
	}
	for _, fn := range []func(context.Context) error{
		conn.RequestPublish, conn.ImportCredentialContext, conn.Pay, conn.VoteForDPoS,
		conn.VoteForCRCouncil, conn.VoteForCRProposal, conn.SendSmartContractTransaction,
	} {
		if err := fn(ctx); !errors.Is(err, ErrNotImplemented) {
			t.Errorf("%s - expected ErrNotImplemented, got %v", connectorTestPrefix, err)
		}
	}
}

func TestRuntime_CloseRejectsPending(t *testing.T) {
	conn, ch := newTestConnector(t, nil)
	_ = conn.Configure(ModuleRefs{Identity: did.StaticIdentity("did:elastos:app")})

	errc := make(chan error, 1)
	go func() {
		_, err := conn.GetCredentials(context.Background(), nil)
		errc <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for conn.rt.Bridge.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := conn.rt.Close(); err != nil {
		t.Fatalf("%s - close failed: %v", connectorTestPrefix, err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, bridge.ErrChannelClosed) {
			t.Errorf("%s - expected ErrChannelClosed, got %v", connectorTestPrefix, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - pending call was not rejected", connectorTestPrefix)
	}
	if !ch.closed {
		t.Errorf("%s - expected channel closed", connectorTestPrefix)
	}
}

func TestRuntimes_AreIsolated(t *testing.T) {
	a, _ := newTestConnector(t, nil)
	b, _ := newTestConnector(t, nil)

	a.RegisterResponseHandler(response.NewCallbackHandler(nil, nil))
	if b.rt.Sink.HasHandler() {
		t.Errorf("%s - handler leaked across runtimes", connectorTestPrefix)
	}
}
