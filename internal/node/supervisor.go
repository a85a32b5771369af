// Package node supervises one base node: it runs the periodic health loop,
// triggers recovery after sustained failure and serves the results over
// HTTP, websocket and NATS.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nodewatch/internal/basenode"
	"nodewatch/internal/health"
	"nodewatch/internal/identity"
	"nodewatch/internal/protocol"
	"nodewatch/internal/syncer"
	"nodewatch/internal/util"
	"nodewatch/internal/watch"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "node")

type Config struct {
	Network            protocol.Network
	NodeType           protocol.NodeType
	HealthInterval     time.Duration
	HealthTimeout      time.Duration
	UnhealthyThreshold int
	// ListenAddr serves the status API. Empty disables it.
	ListenAddr string
}

// NodeClient is the part of the base node client served directly over HTTP
type NodeClient interface {
	ListConnectedPeers(ctx context.Context) ([]string, error)
	Identify(ctx context.Context) (*identity.NodeIdentity, error)
}

type OrphanChecker interface {
	CheckIfOrphaned(ctx context.Context) (bool, error)
}

// Publisher receives status and health events. Optional.
type Publisher interface {
	PublishStatus(ctx context.Context, status protocol.NodeStatus) error
	PublishHealth(ctx context.Context, report protocol.HealthReport) error
}

// Deps are the components a Supervisor drives
type Deps struct {
	Client    NodeClient
	Monitor   *health.Monitor
	Syncer    *syncer.Coordinator
	Orphan    OrphanChecker
	Publisher Publisher
	Registry  *prometheus.Registry
}

type Supervisor struct {
	mu sync.RWMutex

	cfg       Config
	client    NodeClient
	monitor   *health.Monitor
	syncer    *syncer.Coordinator
	orphan    OrphanChecker
	publisher Publisher
	registry  *prometheus.Registry
	metrics   *Metrics
	ws        *WSManager
	server    *http.Server
	now       func() time.Time

	// state
	startTime  time.Time
	lastReport protocol.HealthReport
	checked    bool
	streak     int

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	wg     sync.WaitGroup
}

func NewSupervisor(cfg Config, deps Deps) *Supervisor {
	if cfg.UnhealthyThreshold < 1 {
		cfg.UnhealthyThreshold = 1
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Supervisor{
		cfg:       cfg,
		client:    deps.Client,
		monitor:   deps.Monitor,
		syncer:    deps.Syncer,
		orphan:    deps.Orphan,
		publisher: deps.Publisher,
		registry:  reg,
		metrics:   NewMetrics(reg),
		now:       time.Now,
		quit:      make(chan struct{}),
	}
	s.ws = NewWSManager(s.statusEvent)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start launches the health loop, the status fan-out and, when configured,
// the HTTP server. ctx bounds every background task.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	s.startTime = s.now()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if s.cfg.ListenAddr != "" {
		if !util.IsLoopbackAddr(s.cfg.ListenAddr) {
			log.WithField("addr", s.cfg.ListenAddr).Warn("Status API is reachable from other hosts")
		}
		s.server = &http.Server{
			Addr:              s.cfg.ListenAddr,
			Handler:           s.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			log.WithField("addr", s.cfg.ListenAddr).Info("Status API listening")
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Status API server failed")
			}
		}()
	}

	// subscribe before the first check so no status is missed
	statusRx := s.monitor.Status().Subscribe()
	s.wg.Add(2)
	go s.forwardStatus(statusRx)
	go s.healthLoop()
	if s.syncer != nil {
		s.wg.Add(1)
		go s.forwardSync(s.syncer.Percentage().Subscribe())
	}

	log.WithFields(logrus.Fields{
		"network":   s.cfg.Network,
		"node_type": s.cfg.NodeType,
		"interval":  s.cfg.HealthInterval,
	}).Info("Supervisor started")
	return nil
}

// Stop shuts everything down and waits for background tasks
func (s *Supervisor) Stop() error {
	select {
	case <-s.quit:
		return nil
	default:
		close(s.quit)
	}

	s.cancel()
	if s.syncer != nil {
		s.syncer.Stop()
	}

	var err error
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := s.server.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("failed to stop status API: %w", shutdownErr)
		}
	}
	s.ws.Close()
	s.wg.Wait()
	s.metrics.Close()

	log.Info("Supervisor stopped")
	return err
}

// Uptime is the time since Start
func (s *Supervisor) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return s.now().Sub(s.startTime)
}

// LastHealth returns the last health report and whether any check ran
func (s *Supervisor) LastHealth() (protocol.HealthReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport, s.checked
}

func (s *Supervisor) healthLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		s.CheckOnce(s.ctx)

		select {
		case <-s.quit:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckOnce runs one health check and, after UnhealthyThreshold consecutive
// unhealthy results, the recovery action.
func (s *Supervisor) CheckOnce(ctx context.Context) protocol.HealthReport {
	uptime := s.Uptime()
	start := time.Now()
	status := s.monitor.CheckHealth(ctx, uptime, s.cfg.HealthTimeout)
	elapsed := time.Since(start)

	s.mu.Lock()
	if status == protocol.HealthUnhealthy {
		s.streak++
	} else {
		s.streak = 0
	}
	recovering := s.streak >= s.cfg.UnhealthyThreshold
	streak := s.streak
	if recovering {
		s.streak = 0
	}
	report := protocol.HealthReport{
		Status:  status,
		Uptime:  uptime.Seconds(),
		Streak:  streak,
		Recover: recovering,
	}
	s.lastReport = report
	s.checked = true
	s.mu.Unlock()

	s.metrics.ObserveHealth(status, elapsed.Seconds(), streak)
	entry := log.WithFields(logrus.Fields{
		"status": status,
		"streak": streak,
	})
	if status == protocol.HealthHealthy || status == protocol.HealthInitializing {
		entry.Debug("Health check")
	} else {
		entry.Warn("Health check")
	}

	if recovering {
		entry.Warn("Node unhealthy past threshold, running recovery")
		if err := s.monitor.HandleUnhealthy(ctx); err != nil {
			log.WithError(err).Error("Recovery failed")
		}
		s.metrics.Recoveries.Inc()
	}

	if event, err := protocol.CreateHealthEvent(s.cfg.Network, s.cfg.NodeType, report); err == nil {
		s.ws.Broadcast(event)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishHealth(ctx, report); err != nil {
			log.WithError(err).Debug("Failed to publish health event")
		}
	}
	return report
}

// forwardStatus pushes every status the monitor publishes to metrics,
// websocket subscribers and NATS
func (s *Supervisor) forwardStatus(rx *watch.Receiver[protocol.NodeStatus]) {
	defer s.wg.Done()
	defer rx.Close()

	for {
		if err := rx.Changed(s.ctx); err != nil {
			return
		}
		status := rx.BorrowAndUpdate()

		s.metrics.ObserveStatus(status)
		if event, err := protocol.CreateStatusEvent(s.cfg.Network, s.cfg.NodeType, status); err == nil {
			s.ws.Broadcast(event)
		}
		if s.publisher != nil {
			if err := s.publisher.PublishStatus(s.ctx, status); err != nil {
				log.WithError(err).Debug("Failed to publish status event")
			}
		}
	}
}

// forwardSync mirrors sync progress into metrics and websocket subscribers
func (s *Supervisor) forwardSync(rx *watch.Receiver[float64]) {
	defer s.wg.Done()
	defer rx.Close()

	for {
		if err := rx.Changed(s.ctx); err != nil {
			return
		}
		pct := rx.BorrowAndUpdate()
		s.metrics.SyncProgress.Set(pct)

		report := protocol.SyncReport{Fields: s.syncer.Fields().Borrow(), Percentage: pct}
		if event, err := protocol.CreateSyncEvent(s.cfg.Network, s.cfg.NodeType, report); err == nil {
			s.ws.Broadcast(event)
		}
	}
}

// CheckOrphan runs the orphan check and records the result
func (s *Supervisor) CheckOrphan(ctx context.Context) (bool, error) {
	if s.orphan == nil {
		return false, errors.New("orphan check not configured")
	}
	orphaned, err := s.orphan.CheckIfOrphaned(ctx)
	if err != nil {
		return false, err
	}

	s.metrics.SetOrphaned(orphaned)
	if event, err := protocol.CreateOrphanEvent(s.cfg.Network, s.cfg.NodeType, orphaned); err == nil {
		s.ws.Broadcast(event)
	}
	return orphaned, nil
}

func (s *Supervisor) statusEvent() (*protocol.Event, error) {
	return protocol.CreateStatusEvent(s.cfg.Network, s.cfg.NodeType, s.monitor.Status().Borrow())
}

// isNodeDown reports whether err means the node could not be reached
func isNodeDown(err error) bool {
	return errors.Is(err, basenode.ErrNodeNotStarted) || basenode.IsTimeout(err)
}
