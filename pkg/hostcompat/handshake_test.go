package hostcompat

import (
	"context"
	"errors"
	"testing"

	"github.com/morezero/intent-bridge/pkg/bridge"
)

const handshakeTestPrefix = "hostcompat:handshake_test"

type stubSender struct {
	operation string
	result    interface{}
	err       error
}

func (s *stubSender) Send(_ context.Context, operation string, _ interface{}) (*bridge.Value, error) {
	s.operation = operation
	if s.err != nil {
		return nil, s.err
	}
	return bridge.NewValue(s.result, nil), nil
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name           string
		result         interface{}
		constraint     string
		wantErr        bool
		wantIncompat   bool
		wantInfoOnFail bool
	}{
		{
			name:       "compatible",
			result:     map[string]interface{}{"name": "essentials", "version": "2.4.0"},
			constraint: "^2.0.0",
		},
		{
			name:           "incompatible",
			result:         map[string]interface{}{"name": "essentials", "version": "1.9.0"},
			constraint:     "2",
			wantErr:        true,
			wantIncompat:   true,
			wantInfoOnFail: true,
		},
		{
			name:       "missing version",
			result:     map[string]interface{}{"name": "essentials"},
			constraint: "^2.0.0",
			wantErr:    true,
		},
		{
			name:       "null result",
			result:     nil,
			constraint: "^2.0.0",
			wantErr:    true,
		},
		{
			name:           "unparseable version",
			result:         map[string]interface{}{"name": "essentials", "version": "next"},
			constraint:     "^2.0.0",
			wantErr:        true,
			wantInfoOnFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{result: tt.result}
			info, err := Check(context.Background(), sender, tt.constraint)

			if sender.operation != OpHostInfo {
				t.Errorf("%s - expected %s, got %s", handshakeTestPrefix, OpHostInfo, sender.operation)
			}
			if tt.wantErr != (err != nil) {
				t.Fatalf("%s - wantErr=%v, got %v", handshakeTestPrefix, tt.wantErr, err)
			}
			if errors.Is(err, ErrIncompatibleHost) != tt.wantIncompat {
				t.Errorf("%s - unexpected incompatibility result: %v", handshakeTestPrefix, err)
			}
			if !tt.wantErr && (info == nil || info.Name != "essentials") {
				t.Errorf("%s - unexpected info %+v", handshakeTestPrefix, info)
			}
			if tt.wantErr && tt.wantInfoOnFail && info == nil {
				t.Errorf("%s - expected host info alongside the error", handshakeTestPrefix)
			}
		})
	}
}

func TestCheck_SendError(t *testing.T) {
	sender := &stubSender{err: bridge.ErrChannelClosed}
	if _, err := Check(context.Background(), sender, "^2.0.0"); !errors.Is(err, bridge.ErrChannelClosed) {
		t.Errorf("%s - expected wrapped ErrChannelClosed, got %v", handshakeTestPrefix, err)
	}
}

func TestCheck_InvalidConstraintSkipsSend(t *testing.T) {
	sender := &stubSender{}
	if _, err := Check(context.Background(), sender, "not-a-range"); err == nil {
		t.Fatalf("%s - expected error", handshakeTestPrefix)
	}
	if sender.operation != "" {
		t.Errorf("%s - expected no request to be sent", handshakeTestPrefix)
	}
}
