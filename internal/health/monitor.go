// Package health classifies the base node's health from a single status
// query and clears the node's network state when it is stuck.
package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"nodewatch/internal/basenode"
	"nodewatch/internal/identity"
	"nodewatch/internal/protocol"
	"nodewatch/internal/watch"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "health")

// StaleAfter is how long the tip may stand still, with the monitor up at
// least as long, before the node is declared unhealthy.
const StaleAfter = time.Hour

// NodeClient is the part of the base node client the monitor probes.
type NodeClient interface {
	GetNetworkState(ctx context.Context) (protocol.NodeStatus, error)
	Identify(ctx context.Context) (*identity.NodeIdentity, error)
}

// Config describes the supervised node.
type Config struct {
	NodeType protocol.NodeType
	Network  protocol.Network
	// BasePath is the application data directory. Empty disables recovery.
	BasePath string
}

// Monitor owns the status broadcast and the last seen block time.
type Monitor struct {
	client NodeClient
	cfg    Config
	status *watch.Value[protocol.NodeStatus]
	now    func() time.Time

	lastBlockTime atomic.Uint64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock used for staleness.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a monitor with an empty status broadcast.
func NewMonitor(client NodeClient, cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		client: client,
		cfg:    cfg,
		status: watch.New(protocol.NodeStatus{}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status is the broadcast of the latest node status.
func (m *Monitor) Status() *watch.Value[protocol.NodeStatus] {
	return m.status
}

// LastBlockTime is the block time recorded by the last check that saw it
// change.
func (m *Monitor) LastBlockTime() uint64 {
	return m.lastBlockTime.Load()
}

func (m *Monitor) logger() *logrus.Entry {
	return log.WithField("node_type", m.cfg.NodeType)
}

// CheckHealth queries the node once within timeout and classifies the
// result. It never fails: every error maps onto a status.
func (m *Monitor) CheckHealth(ctx context.Context, uptime, timeout time.Duration) protocol.HealthStatus {
	l := m.logger()

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	status, err := m.client.GetNetworkState(checkCtx)
	cancel()

	if err != nil {
		if !basenode.IsTimeout(err) && !errors.Is(err, basenode.ErrNodeNotStarted) {
			l.WithError(err).Warn("Node health check failed checking base node status")
			return protocol.HealthUnhealthy
		}
		l.WithError(err).Warn("Node health check could not get network state, probing identity")
		return m.probeIdentity(ctx, timeout)
	}

	// a missing subscriber is not an error
	_ = m.status.Send(status)

	if status.ReadinessStatus.IsInitializing() {
		l.WithField("readiness", status.ReadinessStatus.String()).Info("Node health check: not ready yet")
		return protocol.HealthInitializing
	}

	if status.NumConnections == 0 {
		l.WithField("height", status.BlockHeight).Warn("Node health check warning: no connections")
		return protocol.HealthWarning
	}

	if m.lastBlockTime.Load() == status.BlockTime {
		if uptime > StaleAfter && m.tipAge(status.BlockTime) > StaleAfter {
			l.WithFields(logrus.Fields{
				"height":     status.BlockHeight,
				"block_time": status.BlockTime,
			}).Warn("Base node height has not changed in an hour")
			return protocol.HealthUnhealthy
		}
	} else {
		m.lastBlockTime.Store(status.BlockTime)
	}
	return protocol.HealthHealthy
}

// tipAge is the time since blockTime, or 0 when blockTime is in the future.
func (m *Monitor) tipAge(blockTime uint64) time.Duration {
	age := m.now().Sub(time.Unix(int64(blockTime), 0))
	if age < 0 {
		return 0
	}
	return age
}

func (m *Monitor) probeIdentity(ctx context.Context, timeout time.Duration) protocol.HealthStatus {
	l := m.logger()

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := m.client.Identify(probeCtx)
	if err != nil {
		l.WithError(err).Warn("Node health check failed checking base node identity")
		return protocol.HealthUnhealthy
	}
	l.WithField("public_key", id.PublicKey).Info("Base node identity probe succeeded")
	return protocol.HealthWarning
}

// RecoveryPaths lists the directories HandleUnhealthy removes. It is empty
// for remote nodes or without a base path.
func (m *Monitor) RecoveryPaths() []string {
	if m.cfg.NodeType.IsRemote() || m.cfg.BasePath == "" {
		return nil
	}
	network := string(m.cfg.Network)
	return []string{
		filepath.Join(m.cfg.BasePath, "node", network, "peer_db"),
		filepath.Join(m.cfg.BasePath, "node", network, "libtor"),
		filepath.Join(m.cfg.BasePath, "tor-data"),
	}
}

// HandleUnhealthy clears the local node's peer database and tor state so
// the next start rebuilds them. Remote nodes are never touched. Removal
// failures are logged and ignored.
func (m *Monitor) HandleUnhealthy(ctx context.Context) error {
	paths := m.RecoveryPaths()
	if len(paths) == 0 {
		m.logger().Debug("Skipping recovery, nothing to clear")
		return nil
	}

	for _, p := range paths {
		if ctx.Err() != nil {
			return nil
		}
		if err := os.RemoveAll(p); err != nil {
			log.WithError(err).WithField("path", p).Debug("Failed to remove node state")
			continue
		}
		log.WithField("path", p).Info("Removed node state")
	}
	return nil
}
