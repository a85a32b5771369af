// Package syncer waits for the base node's initial sync while publishing
// progress, and runs that wait as a single guarded background task.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"nodewatch/internal/api"
	"nodewatch/internal/basenode"
	"nodewatch/internal/watch"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logrus.WithField("component", "syncer")

const (
	DefaultInterval   = time.Second
	DefaultRetryDelay = 5 * time.Second
)

// NodeClient is the part of the base node client the coordinator polls.
type NodeClient interface {
	GetTipInfo(ctx context.Context) (*api.TipInfoResponse, error)
	GetSyncProgress(ctx context.Context) (*api.SyncProgressResponse, error)
}

type Config struct {
	// RequiredPeers is the denominator of the startup percentage.
	RequiredPeers uint32
	// Interval is the delay between ticks.
	Interval time.Duration
	// RetryDelay is the delay before the background runner retries a failed
	// wait.
	RetryDelay time.Duration
}

// Coordinator publishes sync progress to two broadcasts: the progress map
// and the raw percentage.
type Coordinator struct {
	client     NodeClient
	cfg        Config
	fields     *watch.Value[map[string]string]
	percentage *watch.Value[float64]

	current      atomic.Pointer[run]
	syncedHeight atomic.Uint64
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func New(client NodeClient, cfg Config) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Coordinator{
		client:     client,
		cfg:        cfg,
		fields:     watch.New(map[string]string{}),
		percentage: watch.New(0.0),
	}
}

// Fields is the progress map broadcast.
func (c *Coordinator) Fields() *watch.Value[map[string]string] {
	return c.fields
}

// Percentage is the progress percentage broadcast (1.0 is complete).
func (c *Coordinator) Percentage() *watch.Value[float64] {
	return c.percentage
}

// SyncedHeight returns the height recorded by the last successful background
// wait, or 0.
func (c *Coordinator) SyncedHeight() uint64 {
	return c.syncedHeight.Load()
}

// WaitSynced polls until the node reports initial sync achieved with a
// non-zero tip and returns that height. Cancelling ctx returns 0 and nil.
// An RPC failure ends the wait with the client's error.
func (c *Coordinator) WaitSynced(ctx context.Context) (uint64, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, nil
		case <-timer.C:
		}

		tip, progress, err := c.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil
			}
			return 0, err
		}

		fields, percentage := Progress(progress, c.cfg.RequiredPeers)
		// a missing subscriber is not an error
		_ = c.percentage.Send(percentage)
		_ = c.fields.Send(fields)

		log.WithFields(logrus.Fields{
			"step":       fields[KeyStep],
			"percentage": percentage,
		}).Debug("Sync progress")

		if tip.InitialSyncAchieved && tip.Metadata != nil && tip.Metadata.BestBlockHeight > 0 {
			log.WithField("height", tip.Metadata.BestBlockHeight).Info("Initial sync achieved")
			return tip.Metadata.BestBlockHeight, nil
		}

		timer.Reset(c.cfg.Interval)
	}
}

func (c *Coordinator) poll(ctx context.Context) (*api.TipInfoResponse, *api.SyncProgressResponse, error) {
	var (
		tip      *api.TipInfoResponse
		progress *api.SyncProgressResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tip, err = c.client.GetTipInfo(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = c.client.GetSyncProgress(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, asUnknown(err)
	}
	return tip, progress, nil
}

// asUnknown keeps the client's taxonomy and wraps anything else.
func asUnknown(err error) error {
	var unknown *basenode.UnknownError
	if errors.As(err, &unknown) || errors.Is(err, basenode.ErrNodeNotStarted) {
		return err
	}
	return &basenode.UnknownError{Err: fmt.Errorf("sync poll: %w", err)}
}

// Start launches WaitSynced in the background. Starting while a wait is
// already running is a no-op. Failed waits are retried after RetryDelay until
// the node is synced or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	if !c.current.CompareAndSwap(nil, r) {
		cancel()
		log.Debug("Sync wait already running")
		return nil
	}

	go c.loop(runCtx, r)
	return nil
}

// Stop cancels the background wait and waits for it to exit.
func (c *Coordinator) Stop() {
	r := c.current.Swap(nil)
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

// IsRunning reports whether a background wait is active.
func (c *Coordinator) IsRunning() bool {
	return c.current.Load() != nil
}

func (c *Coordinator) loop(ctx context.Context, r *run) {
	defer func() {
		c.current.CompareAndSwap(r, nil)
		r.cancel()
		close(r.done)
	}()

	for {
		height, err := c.WaitSynced(ctx)
		if err == nil {
			// height is 0 only when cancelled
			if height > 0 {
				c.syncedHeight.Store(height)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		log.WithError(err).WithField("retry_in", c.cfg.RetryDelay).Warn("Waiting for sync failed")
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}
