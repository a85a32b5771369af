package protocol

import (
	"encoding/json"
	"testing"

	"nodewatch/internal/readiness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeStatusJSON(t *testing.T) {
	var zero NodeStatus
	raw, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"sha_network_hashrate": 0,
		"monero_randomx_network_hashrate": 0,
		"tari_randomx_network_hashrate": 0,
		"block_reward": 0,
		"block_height": 0,
		"block_time": 0,
		"is_synced": false,
		"num_connections": 0,
		"readiness_status": {"State": 0}
	}`, string(raw))

	status := NodeStatus{BlockHeight: 12, BlockReward: 5, ReadinessStatus: readiness.Ready}
	raw, err = json.Marshal(status)
	require.NoError(t, err)
	var decoded NodeStatus
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, status, decoded)
}

func TestHealthStatusText(t *testing.T) {
	for _, h := range []HealthStatus{HealthInitializing, HealthHealthy, HealthWarning, HealthUnhealthy} {
		raw, err := json.Marshal(h)
		require.NoError(t, err)
		assert.Equal(t, `"`+h.String()+`"`, string(raw))

		var got HealthStatus
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, h, got)
	}
	assert.Equal(t, "HealthStatus(9)", HealthStatus(9).String())

	var h HealthStatus
	assert.Error(t, h.UnmarshalText([]byte("Dead")))
}

func TestParseTypes(t *testing.T) {
	nt, err := ParseNodeType(" Remote ")
	require.NoError(t, err)
	assert.True(t, nt.IsRemote())
	_, err = ParseNodeType("cloud")
	assert.Error(t, err)

	n, err := ParseNetwork("NEXTNET")
	require.NoError(t, err)
	assert.Equal(t, NetworkNextnet, n)
	_, err = ParseNetwork("stagenet")
	assert.Error(t, err)
}

func TestVersionGate(t *testing.T) {
	gate, err := NewVersionGate("1.9.0")
	require.NoError(t, err)
	assert.Equal(t, "1.9.0", gate.Minimum())

	tests := []struct {
		version    string
		compatible bool
	}{
		{"1.9.0", true},
		{"v1.10.2", true},
		{"2.0.0 (abc1234)", true},
		{"1.8.9", false},
		{"1.9.0-pre.1", false},
	}
	for _, tt := range tests {
		ok, err := gate.IsCompatible(tt.version)
		require.NoError(t, err, tt.version)
		assert.Equal(t, tt.compatible, ok, tt.version)
	}

	_, err = gate.IsCompatible("not-a-version")
	assert.Error(t, err)

	open, err := NewVersionGate("")
	require.NoError(t, err)
	ok, err := open.IsCompatible("0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewVersionGate("garbage")
	assert.Error(t, err)
}

func TestEventRoundTrip(t *testing.T) {
	e, err := CreateHealthEvent(NetworkMainnet, NodeTypeLocal, HealthReport{Status: HealthWarning, Uptime: 12})
	require.NoError(t, err)
	raw, err := e.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, EventTypeHealth, decoded.Type)
	assert.Equal(t, NetworkMainnet, decoded.Network)

	var report HealthReport
	require.NoError(t, decoded.DecodePayload(&report))
	assert.Equal(t, HealthWarning, report.Status)
	assert.Equal(t, 12.0, report.Uptime)
}
