package protocol

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// VersionGate rejects base node versions older than a configured minimum.
type VersionGate struct {
	minVersion *version.Version
}

// NewVersionGate creates a gate. An empty minimum accepts every version.
func NewVersionGate(minimum string) (*VersionGate, error) {
	if minimum == "" {
		return &VersionGate{}, nil
	}
	min, err := version.NewVersion(minimum)
	if err != nil {
		return nil, fmt.Errorf("invalid min version: %w", err)
	}
	return &VersionGate{minVersion: min}, nil
}

// Minimum returns the configured minimum, or "" when none is set.
func (g *VersionGate) Minimum() string {
	if g.minVersion == nil {
		return ""
	}
	return g.minVersion.String()
}

// IsCompatible checks a version string as reported by the node, which may
// carry a leading "v" or a trailing build description after a space.
func (g *VersionGate) IsCompatible(nodeVersion string) (bool, error) {
	v, err := ParseNodeVersion(nodeVersion)
	if err != nil {
		return false, err
	}
	if g.minVersion == nil {
		return true, nil
	}
	return !v.LessThan(g.minVersion), nil
}

// ParseNodeVersion parses strings such as "v1.9.0-pre.2" or
// "1.9.0 (a1b2c3d)".
func ParseNodeVersion(s string) (*version.Version, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	v, err := version.NewVersion(strings.TrimPrefix(s, "v"))
	if err != nil {
		return nil, fmt.Errorf("invalid version string: %w", err)
	}
	return v, nil
}
