package config

import (
	"fmt"
	"strings"
	"time"

	"nodewatch/internal/protocol"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvPrefix is the default prefix for environment variables
const (
	DefaultEnvPrefix = "NODEWATCH_"

	DefaultNodeHost           = "127.0.0.1"
	DefaultNodeGRPCPort       = 18142
	DefaultRequiredSyncPeers  = 3
	DefaultSyncInterval       = time.Second
	DefaultSyncRetryDelay     = 5 * time.Second
	DefaultHealthInterval     = 30 * time.Second
	DefaultHealthTimeout      = 10 * time.Second
	DefaultUnhealthyThreshold = 3
	DefaultListenAddr         = "127.0.0.1:18190"
	DefaultNATSSubject        = "nodewatch"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Config represents the supervisor configuration
type Config struct {
	// Base node connection
	NodeHost     string            `yaml:"node_host"`
	NodeGRPCPort uint16            `yaml:"node_grpc_port"`
	NodeType     protocol.NodeType `yaml:"node_type"`
	Network      protocol.Network  `yaml:"network"`
	// BasePath is the application data directory holding node state.
	// Empty disables recovery.
	BasePath       string `yaml:"base_path"`
	MinNodeVersion string `yaml:"min_node_version"`

	// Sync
	RequiredSyncPeers uint32        `yaml:"required_sync_peers"`
	SyncInterval      time.Duration `yaml:"sync_interval"`
	SyncRetryDelay    time.Duration `yaml:"sync_retry_delay"`

	// Health
	HealthInterval     time.Duration `yaml:"health_interval"`
	HealthTimeout      time.Duration `yaml:"health_timeout"`
	UnhealthyThreshold int           `yaml:"unhealthy_threshold"`

	// ExplorerURL overrides the public explorer for every network
	ExplorerURL string `yaml:"explorer_url"`

	// ListenAddr serves the status API. Empty disables it.
	ListenAddr string `yaml:"listen_addr"`

	// NATSURL enables the status publisher
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		NodeHost:           DefaultNodeHost,
		NodeGRPCPort:       DefaultNodeGRPCPort,
		NodeType:           protocol.NodeTypeLocal,
		Network:            protocol.NetworkMainnet,
		RequiredSyncPeers:  DefaultRequiredSyncPeers,
		SyncInterval:       DefaultSyncInterval,
		SyncRetryDelay:     DefaultSyncRetryDelay,
		HealthInterval:     DefaultHealthInterval,
		HealthTimeout:      DefaultHealthTimeout,
		UnhealthyThreshold: DefaultUnhealthyThreshold,
		ListenAddr:         DefaultListenAddr,
		NATSSubject:        DefaultNATSSubject,
		LogLevel:           DefaultLogLevel,
		LogFormat:          DefaultLogFormat,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.NodeHost == "" {
		return fmt.Errorf("node host is required")
	}
	if c.NodeGRPCPort == 0 {
		return fmt.Errorf("node gRPC port is required")
	}
	if _, err := protocol.ParseNodeType(string(c.NodeType)); err != nil {
		return err
	}
	if _, err := protocol.ParseNetwork(string(c.Network)); err != nil {
		return err
	}
	if c.MinNodeVersion != "" {
		if _, err := protocol.NewVersionGate(c.MinNodeVersion); err != nil {
			return fmt.Errorf("invalid minimum node version: %w", err)
		}
	}

	if c.RequiredSyncPeers == 0 {
		return fmt.Errorf("required sync peers must be greater than 0")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if c.SyncRetryDelay <= 0 {
		return fmt.Errorf("sync retry delay must be positive")
	}

	if c.HealthInterval <= 0 {
		return fmt.Errorf("health interval must be positive")
	}
	if c.HealthTimeout <= 0 {
		return fmt.Errorf("health timeout must be positive")
	}
	if c.HealthTimeout > c.HealthInterval {
		return fmt.Errorf("health timeout (%s) must not exceed health interval (%s)", c.HealthTimeout, c.HealthInterval)
	}
	if c.UnhealthyThreshold < 1 {
		return fmt.Errorf("unhealthy threshold must be at least 1")
	}

	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("NATS subject is required when NATS is enabled")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if err := ValidateOneOf("text", "json")(c.LogFormat); err != nil {
		return fmt.Errorf("invalid log format: %w", err)
	}
	return nil
}

// Load loads configuration from an optional YAML file, a .env file and
// environment variables, in increasing precedence
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	loader := NewEnvLoader(DefaultEnvPrefix)
	loader.LoadAll()
	return LoadFrom(loader)
}

// LoadFrom builds the configuration from loaded variables
func LoadFrom(loader *EnvLoader) (*Config, error) {
	cfg := Default()

	if path := loader.GetString("CONFIG_FILE", ""); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(loader, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(loader *EnvLoader, cfg *Config) error {
	var err error

	// Base node connection
	if cfg.NodeHost, err = loader.GetStringValidated("NODE_HOST", cfg.NodeHost, ValidateNotEmpty); err != nil {
		return fmt.Errorf("invalid node host: %w", err)
	}
	if cfg.NodeGRPCPort, err = loader.GetUint16("NODE_GRPC_PORT", cfg.NodeGRPCPort); err != nil {
		return fmt.Errorf("invalid node gRPC port: %w", err)
	}

	nodeType := loader.GetString("NODE_TYPE", string(cfg.NodeType))
	if cfg.NodeType, err = protocol.ParseNodeType(nodeType); err != nil {
		return fmt.Errorf("invalid node type: %w", err)
	}

	network := loader.GetString("NETWORK", string(cfg.Network))
	if cfg.Network, err = protocol.ParseNetwork(network); err != nil {
		return fmt.Errorf("invalid network: %w", err)
	}

	cfg.BasePath = loader.GetString("BASE_PATH", cfg.BasePath)
	cfg.MinNodeVersion = loader.GetString("MIN_NODE_VERSION", cfg.MinNodeVersion)

	// Sync
	if cfg.RequiredSyncPeers, err = loader.GetUint32("REQUIRED_SYNC_PEERS", cfg.RequiredSyncPeers); err != nil {
		return fmt.Errorf("invalid required sync peers: %w", err)
	}
	if cfg.SyncInterval, err = loader.GetDuration("SYNC_INTERVAL", cfg.SyncInterval); err != nil {
		return fmt.Errorf("invalid sync interval: %w", err)
	}
	if cfg.SyncRetryDelay, err = loader.GetDuration("SYNC_RETRY_DELAY", cfg.SyncRetryDelay); err != nil {
		return fmt.Errorf("invalid sync retry delay: %w", err)
	}

	// Health
	if cfg.HealthInterval, err = loader.GetDuration("HEALTH_INTERVAL", cfg.HealthInterval); err != nil {
		return fmt.Errorf("invalid health interval: %w", err)
	}
	if cfg.HealthTimeout, err = loader.GetDuration("HEALTH_TIMEOUT", cfg.HealthTimeout); err != nil {
		return fmt.Errorf("invalid health timeout: %w", err)
	}
	if cfg.UnhealthyThreshold, err = loader.GetInt("UNHEALTHY_THRESHOLD", cfg.UnhealthyThreshold); err != nil {
		return fmt.Errorf("invalid unhealthy threshold: %w", err)
	}

	// Outputs
	cfg.ExplorerURL = loader.GetString("EXPLORER_URL", cfg.ExplorerURL)
	cfg.ListenAddr = loader.GetString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.NATSURL = loader.GetString("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = loader.GetString("NATS_SUBJECT", cfg.NATSSubject)

	cfg.LogLevel = strings.ToLower(loader.GetString("LOG_LEVEL", cfg.LogLevel))
	if cfg.LogFormat, err = loader.GetStringValidated("LOG_FORMAT", strings.ToLower(cfg.LogFormat), ValidateOneOf("text", "json")); err != nil {
		return fmt.Errorf("invalid log format: %w", err)
	}
	return nil
}
