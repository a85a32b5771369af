package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"nodewatch/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadEnv(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	for k, v := range env {
		t.Setenv(DefaultEnvPrefix+k, v)
	}
	loader := NewEnvLoader(DefaultEnvPrefix)
	loader.LoadAll()
	return LoadFrom(loader)
}

func TestDefaults(t *testing.T) {
	cfg, err := loadEnv(t, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, protocol.NodeTypeLocal, cfg.NodeType)
	assert.Equal(t, protocol.NetworkMainnet, cfg.Network)
	assert.Equal(t, uint16(18142), cfg.NodeGRPCPort)
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := loadEnv(t, map[string]string{
		"NODE_HOST":           "10.0.0.5",
		"NODE_GRPC_PORT":      "18152",
		"NODE_TYPE":           "Remote",
		"NETWORK":             "NEXTNET",
		"BASE_PATH":           "/var/lib/tari",
		"REQUIRED_SYNC_PEERS": "5",
		"SYNC_INTERVAL":       "2s",
		"SYNC_RETRY_DELAY":    "10s",
		"HEALTH_INTERVAL":     "1m",
		"HEALTH_TIMEOUT":      "15s",
		"UNHEALTHY_THRESHOLD": "4",
		"EXPLORER_URL":        "http://explorer.local",
		"LISTEN_ADDR":         ":9000",
		"NATS_URL":            "nats://127.0.0.1:4222",
		"NATS_SUBJECT":        "tari.nodes",
		"MIN_NODE_VERSION":    "1.0.0",
		"LOG_LEVEL":           "DEBUG",
		"LOG_FORMAT":          "json",
	})
	require.NoError(t, err)

	assert.Equal(t, &Config{
		NodeHost:           "10.0.0.5",
		NodeGRPCPort:       18152,
		NodeType:           protocol.NodeTypeRemote,
		Network:            protocol.NetworkNextnet,
		BasePath:           "/var/lib/tari",
		MinNodeVersion:     "1.0.0",
		RequiredSyncPeers:  5,
		SyncInterval:       2 * time.Second,
		SyncRetryDelay:     10 * time.Second,
		HealthInterval:     time.Minute,
		HealthTimeout:      15 * time.Second,
		UnhealthyThreshold: 4,
		ExplorerURL:        "http://explorer.local",
		ListenAddr:         ":9000",
		NATSURL:            "nats://127.0.0.1:4222",
		NATSSubject:        "tari.nodes",
		LogLevel:           "debug",
		LogFormat:          "json",
	}, cfg)
}

func TestEnvErrors(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"NODE_GRPC_PORT", "70000", "invalid node gRPC port"},
		{"NODE_HOST", "", "invalid node host"},
		{"NODE_TYPE", "cloud", "invalid node type"},
		{"NETWORK", "testnet", "invalid network"},
		{"REQUIRED_SYNC_PEERS", "-1", "invalid required sync peers"},
		{"SYNC_INTERVAL", "soon", "invalid sync interval"},
		{"HEALTH_TIMEOUT", "5", "invalid health timeout"},
		{"UNHEALTHY_THRESHOLD", "x", "invalid unhealthy threshold"},
		{"LOG_FORMAT", "xml", "invalid log format"},
		{"LOG_LEVEL", "loud", "invalid log level"},
		{"MIN_NODE_VERSION", "not.a.version", "invalid minimum node version"},
		{"UNHEALTHY_THRESHOLD", "0", "unhealthy threshold"},
		{"REQUIRED_SYNC_PEERS", "0", "required sync peers"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			_, err := loadEnv(t, map[string]string{tt.key: tt.value})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.HealthTimeout = time.Minute
	assert.ErrorContains(t, cfg.Validate(), "must not exceed health interval")

	cfg = Default()
	cfg.NATSURL = "nats://localhost:4222"
	cfg.NATSSubject = ""
	assert.ErrorContains(t, cfg.Validate(), "NATS subject")

	cfg = Default()
	cfg.NodeGRPCPort = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node_host: 192.168.1.20
network: esmeralda
health_interval: 45s
unhealthy_threshold: 2
`), 0o600))

	cfg, err := loadEnv(t, map[string]string{
		"CONFIG_FILE":         path,
		"UNHEALTHY_THRESHOLD": "6",
	})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", cfg.NodeHost)
	assert.Equal(t, protocol.NetworkEsmeralda, cfg.Network)
	assert.Equal(t, 45*time.Second, cfg.HealthInterval)
	assert.Equal(t, 6, cfg.UnhealthyThreshold, "environment wins over file")
	assert.Equal(t, uint16(DefaultNodeGRPCPort), cfg.NodeGRPCPort, "missing keys keep defaults")
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := loadEnv(t, map[string]string{"CONFIG_FILE": filepath.Join(dir, "missing.yaml")})
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("node_hots: typo\n"), 0o600))
	assert.ErrorContains(t, LoadFile(bad, Default()), "failed to parse config file")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	cfg := Default()
	require.NoError(t, LoadFile(empty, cfg))
	assert.Equal(t, Default(), cfg)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	want := Default()
	want.NATSURL = "nats://localhost:4222"
	want.HealthTimeout = 7 * time.Second
	require.NoError(t, WriteFile(path, want))

	got := &Config{}
	require.NoError(t, LoadFile(path, got))
	assert.Equal(t, want, got)
}
