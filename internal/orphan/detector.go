// Package orphan detects a node that is synced but following a fork the rest
// of the network abandoned.
package orphan

import (
	"context"
	"errors"
	"fmt"

	"nodewatch/internal/explorer"
	"nodewatch/internal/protocol"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "orphan")

// Depths below the explorer tip that are compared. Blocks this deep are past
// any ordinary reorg.
var probeDepths = []uint64{50, 100, 200}

// NodeClient is the part of the base node client the detector reads.
type NodeClient interface {
	GetNetworkState(ctx context.Context) (protocol.NodeStatus, error)
	GetHistoricalBlocks(ctx context.Context, heights []uint64) ([]protocol.Block, error)
}

// Explorer is the independent source of the canonical chain.
type Explorer interface {
	GetBestBlock(ctx context.Context, network protocol.Network) (uint64, error)
	GetBlockInfo(ctx context.Context, network protocol.Network, height uint64) (protocol.Block, error)
}

// Detector compares the local chain against the explorer at fixed depths.
type Detector struct {
	node     NodeClient
	explorer Explorer
	network  protocol.Network
}

// New creates a detector for network.
func New(node NodeClient, explorer Explorer, network protocol.Network) *Detector {
	return &Detector{node: node, explorer: explorer, network: network}
}

// ProbeHeights returns tip-50, tip-100 and tip-200, saturating at 0. On a
// short chain several of them are 0.
func ProbeHeights(tip uint64) []uint64 {
	heights := make([]uint64, 0, len(probeDepths))
	for _, depth := range probeDepths {
		h := uint64(0)
		if tip > depth {
			h = tip - depth
		}
		heights = append(heights, h)
	}
	return heights
}

// CheckIfOrphaned reports whether the local chain lacks a block the explorer
// has at one of the probe heights. An unsynced node is never reported as
// orphaned.
func (d *Detector) CheckIfOrphaned(ctx context.Context) (bool, error) {
	status, err := d.node.GetNetworkState(ctx)
	if err != nil {
		return false, fmt.Errorf("orphan check: %w", err)
	}
	if !status.IsSynced {
		log.Info("Node is not synced, skipping orphan chain check")
		return false, nil
	}

	tip, err := d.explorer.GetBestBlock(ctx, d.network)
	if err != nil {
		return false, fmt.Errorf("orphan check: %w", err)
	}

	var remote []protocol.Block
	fetched := make(map[uint64]struct{}, len(probeDepths))
	for _, height := range ProbeHeights(tip) {
		// saturated heights repeat
		if _, ok := fetched[height]; ok {
			continue
		}
		fetched[height] = struct{}{}

		block, err := d.explorer.GetBlockInfo(ctx, d.network, height)
		if errors.Is(err, explorer.ErrBlockNotFound) {
			log.WithField("height", height).Debug("Explorer has no block at probe height, skipping")
			continue
		}
		if err != nil {
			return false, fmt.Errorf("orphan check: %w", err)
		}
		remote = append(remote, block)
	}
	if len(remote) == 0 {
		return false, nil
	}

	heights := make([]uint64, len(remote))
	for i, b := range remote {
		heights[i] = b.Height
	}
	local, err := d.node.GetHistoricalBlocks(ctx, heights)
	if err != nil {
		return false, fmt.Errorf("orphan check: %w", err)
	}

	for _, want := range remote {
		if contains(local, want) {
			continue
		}
		entry := log.WithFields(logrus.Fields{
			"height": want.Height,
			"hash":   want.Hash,
		})
		if got, ok := atHeight(local, want.Height); ok {
			entry = entry.WithField("local_hash", got.Hash)
		}
		entry.Error("Node is stuck on an orphan chain, explorer block does not exist locally")
		return true, nil
	}
	return false, nil
}

func contains(blocks []protocol.Block, want protocol.Block) bool {
	for _, b := range blocks {
		if b == want {
			return true
		}
	}
	return false
}

func atHeight(blocks []protocol.Block, height uint64) (protocol.Block, bool) {
	for _, b := range blocks {
		if b.Height == height {
			return b, true
		}
	}
	return protocol.Block{}, false
}
