package hostcompat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	masterminds "github.com/Masterminds/semver/v3"

	"github.com/morezero/intent-bridge/pkg/bridge"
)

const logPrefix = "hostcompat:handshake"

// OpHostInfo asks the host for its name and protocol version.
const OpHostInfo = "bridge_hostInfo"

// ErrIncompatibleHost is returned when the host version is outside the constraint.
var ErrIncompatibleHost = errors.New("hostcompat: incompatible host version")

// Sender is the direct-return transport.
type Sender interface {
	Send(ctx context.Context, operation string, parameters interface{}) (*bridge.Value, error)
}

// HostInfo is the host's answer to OpHostInfo.
type HostInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Check asks the host for its version and verifies it against constraint. The
// host info is returned even when the check fails.
func Check(ctx context.Context, sender Sender, constraint string) (*HostInfo, error) {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return nil, err
	}

	v, err := sender.Send(ctx, OpHostInfo, map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("%s - host info request failed: %w", logPrefix, err)
	}
	var info HostInfo
	if err := v.Into(&info); err != nil {
		return nil, fmt.Errorf("%s - malformed host info: %w", logPrefix, err)
	}
	if info.Version == "" {
		return nil, fmt.Errorf("%s - host did not report a version", logPrefix)
	}

	version, err := masterminds.NewVersion(info.Version)
	if err != nil {
		return &info, fmt.Errorf("%s - invalid host version %q: %w", logPrefix, info.Version, err)
	}
	if !c.Check(version) {
		return &info, fmt.Errorf("%w: %s %s does not satisfy %s", ErrIncompatibleHost, info.Name, info.Version, constraint)
	}

	slog.Info(fmt.Sprintf("%s - host %s %s satisfies %s", logPrefix, info.Name, info.Version, constraint))
	return &info, nil
}
