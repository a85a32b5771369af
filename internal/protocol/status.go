package protocol

import (
	"fmt"
	"strings"

	"nodewatch/internal/readiness"
)

// MicroMinotari is an amount in micro units.
type MicroMinotari uint64

func (m MicroMinotari) String() string {
	return fmt.Sprintf("%d µT", uint64(m))
}

// NodeStatus is a snapshot of the base node's network state. The zero value
// means the node was never queried.
type NodeStatus struct {
	ShaNetworkHashrate           uint64           `json:"sha_network_hashrate"`
	MoneroRandomxNetworkHashrate uint64           `json:"monero_randomx_network_hashrate"`
	TariRandomxNetworkHashrate   uint64           `json:"tari_randomx_network_hashrate"`
	BlockReward                  MicroMinotari    `json:"block_reward"`
	BlockHeight                  uint64           `json:"block_height"`
	BlockTime                    uint64           `json:"block_time"`
	IsSynced                     bool             `json:"is_synced"`
	NumConnections               uint64           `json:"num_connections"`
	ReadinessStatus              readiness.Status `json:"readiness_status"`
}

// HealthStatus is the outcome of a single health check.
type HealthStatus int

const (
	HealthInitializing HealthStatus = iota
	HealthHealthy
	HealthWarning
	HealthUnhealthy
)

var healthNames = [...]string{"Initializing", "Healthy", "Warning", "Unhealthy"}

func (h HealthStatus) String() string {
	if h < 0 || int(h) >= len(healthNames) {
		return fmt.Sprintf("HealthStatus(%d)", int(h))
	}
	return healthNames[h]
}

func (h HealthStatus) MarshalText() ([]byte, error) {
	if h < 0 || int(h) >= len(healthNames) {
		return nil, fmt.Errorf("unknown health status %d", int(h))
	}
	return []byte(healthNames[h]), nil
}

func (h *HealthStatus) UnmarshalText(b []byte) error {
	for i, name := range healthNames {
		if strings.EqualFold(name, string(b)) {
			*h = HealthStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown health status %q", string(b))
}
