package orphan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"nodewatch/internal/api"
	"nodewatch/internal/basenode"
	"nodewatch/internal/explorer"
	"nodewatch/internal/protocol"
	"nodewatch/internal/test/testutil"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExplorer struct {
	tip     uint64
	tipErr  error
	blocks  map[uint64]string
	blkErr  error
	queried []uint64
}

func (s *stubExplorer) GetBestBlock(context.Context, protocol.Network) (uint64, error) {
	return s.tip, s.tipErr
}

func (s *stubExplorer) GetBlockInfo(_ context.Context, _ protocol.Network, height uint64) (protocol.Block, error) {
	s.queried = append(s.queried, height)
	if s.blkErr != nil {
		return protocol.Block{}, s.blkErr
	}
	hash, ok := s.blocks[height]
	if !ok {
		return protocol.Block{}, fmt.Errorf("stub: %w", explorer.ErrBlockNotFound)
	}
	return protocol.Block{Height: height, Hash: hash}, nil
}

func setup(t *testing.T, ex *stubExplorer) (*testutil.FakeBaseNode, *Detector) {
	fake := testutil.NewFakeBaseNode(t)
	fake.SetNetworkState(testutil.ReadyNetworkState(1000, 1700000000))
	client := basenode.New(fake.Target(), fake.DialOptions()...)
	return fake, New(client, ex, protocol.NetworkMainnet)
}

func TestProbeHeights(t *testing.T) {
	assert.Equal(t, []uint64{950, 900, 800}, ProbeHeights(1000))
	assert.Equal(t, []uint64{100, 50, 0}, ProbeHeights(150))
	assert.Equal(t, []uint64{0, 0, 0}, ProbeHeights(30))
	assert.Equal(t, []uint64{0, 0, 0}, ProbeHeights(0))
	assert.Equal(t, []uint64{10, 0, 0}, ProbeHeights(60))
	assert.Equal(t, []uint64{0, 0, 0}, ProbeHeights(50))
	assert.Equal(t, []uint64{150, 100, 0}, ProbeHeights(200))
}

func TestCheckIfOrphanedMatchingChain(t *testing.T) {
	ex := &stubExplorer{tip: 1000, blocks: map[uint64]string{950: "0a", 900: "0b", 800: "0c"}}
	fake, d := setup(t, ex)
	fake.SetChain(map[uint64][]byte{950: {0x0a}, 900: {0x0b}, 800: {0x0c}})

	orphaned, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.False(t, orphaned)
	assert.Equal(t, []uint64{950, 900, 800}, ex.queried)
}

func TestCheckIfOrphanedMismatch(t *testing.T) {
	hook := testutil.NewTestLogHook(t, logrus.ErrorLevel)
	ex := &stubExplorer{tip: 1000, blocks: map[uint64]string{950: "0a", 900: "0b", 800: "0c"}}
	fake, d := setup(t, ex)
	fake.SetChain(map[uint64][]byte{950: {0xee}, 900: {0x0b}, 800: {0x0c}})

	orphaned, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.True(t, orphaned)

	entry := hook.RequireEntry(t, logrus.ErrorLevel, "orphan chain")
	require.NotNil(t, entry)
	assert.Equal(t, uint64(950), entry.Data["height"])
	assert.Equal(t, "0a", entry.Data["hash"])
	assert.Equal(t, "ee", entry.Data["local_hash"])
	assert.Len(t, hook.Entries(), 1, "only the first mismatch is reported")
}

func TestCheckIfOrphanedMissingLocalBlock(t *testing.T) {
	hook := testutil.NewTestLogHook(t, logrus.ErrorLevel)
	ex := &stubExplorer{tip: 1000, blocks: map[uint64]string{950: "0a", 900: "0b", 800: "0c"}}
	fake, d := setup(t, ex)
	fake.SetChain(map[uint64][]byte{950: {0x0a}, 800: {0x0c}})

	orphaned, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.True(t, orphaned)

	entry := hook.RequireEntry(t, logrus.ErrorLevel, "orphan chain")
	require.NotNil(t, entry)
	assert.Equal(t, uint64(900), entry.Data["height"])
	assert.NotContains(t, entry.Data, "local_hash")
}

func TestCheckIfOrphanedNotSynced(t *testing.T) {
	ex := &stubExplorer{tip: 1000}
	fake, d := setup(t, ex)
	state := testutil.ReadyNetworkState(1000, 1700000000)
	state.InitialSyncAchieved = false
	fake.SetNetworkState(state)

	orphaned, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.False(t, orphaned)
	assert.Empty(t, ex.queried)
	assert.Zero(t, fake.Calls("GetBlocks"))
}

func TestCheckIfOrphanedShortChain(t *testing.T) {
	ex := &stubExplorer{tip: 30, blocks: map[uint64]string{0: "00"}}
	fake, d := setup(t, ex)
	fake.SetChain(map[uint64][]byte{0: {0x00}})

	orphaned, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.False(t, orphaned)
	// genesis is probed three times but fetched once
	assert.Equal(t, []uint64{0}, ex.queried)
	assert.Equal(t, 1, fake.Calls("GetBlocks"))
}

func TestCheckIfOrphanedShortChainMismatch(t *testing.T) {
	hook := testutil.NewTestLogHook(t, logrus.ErrorLevel)
	ex := &stubExplorer{tip: 60, blocks: map[uint64]string{10: "0a", 0: "00"}}
	fake, d := setup(t, ex)
	fake.SetChain(map[uint64][]byte{10: {0x0a}, 0: {0xff}})

	orphaned, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.True(t, orphaned)
	assert.Equal(t, []uint64{10, 0}, ex.queried)

	entry := hook.RequireEntry(t, logrus.ErrorLevel, "orphan chain")
	require.NotNil(t, entry)
	assert.Equal(t, uint64(0), entry.Data["height"])
	assert.Equal(t, "ff", entry.Data["local_hash"])
}

func TestCheckIfOrphanedExplorerMissingBlock(t *testing.T) {
	ex := &stubExplorer{tip: 1000, blocks: map[uint64]string{900: "0b"}}
	fake, d := setup(t, ex)
	fake.SetChain(map[uint64][]byte{900: {0x0b}})

	orphaned, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.False(t, orphaned)

	ex = &stubExplorer{tip: 1000, blocks: map[uint64]string{}}
	fake, d = setup(t, ex)
	orphaned, err = d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.False(t, orphaned)
	assert.Zero(t, fake.Calls("GetBlocks"))
}

func TestCheckIfOrphanedErrors(t *testing.T) {
	t.Run("explorer tip", func(t *testing.T) {
		_, d := setup(t, &stubExplorer{tipErr: errors.New("dns failure")})
		_, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
		assert.ErrorContains(t, err, "dns failure")
	})

	t.Run("explorer block", func(t *testing.T) {
		_, d := setup(t, &stubExplorer{tip: 1000, blkErr: errors.New("502")})
		_, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
		assert.ErrorContains(t, err, "502")
	})

	t.Run("node offline", func(t *testing.T) {
		fake, d := setup(t, &stubExplorer{tip: 1000})
		fake.Stop()
		_, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
		assert.ErrorIs(t, err, basenode.ErrNodeNotStarted)
	})

	t.Run("local blocks", func(t *testing.T) {
		fake, d := setup(t, &stubExplorer{tip: 1000, blocks: map[uint64]string{950: "0a"}})
		fake.HandleBlocks(func(*api.GetBlocksRequest) ([]*api.HistoricalBlock, error) {
			return []*api.HistoricalBlock{{}}, nil
		})
		_, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
		assert.ErrorIs(t, err, basenode.ErrMissingBlockData)
	})
}

func TestCheckIfOrphanedAgainstExplorerHTTP(t *testing.T) {
	srv := testutil.NewTestHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			_, _ = w.Write([]byte(`{"tipInfo":{"metadata":{"best_block_height":"260"}}}`))
		case strings.HasPrefix(r.URL.Path, "/blocks/"):
			h := strings.TrimPrefix(r.URL.Path, "/blocks/")
			if h == "60" {
				http.NotFound(w, r)
				return
			}
			_, _ = fmt.Fprintf(w, `{"header":{"height":%s,"hash":[1,%s]}}`, h, h)
		}
	}))

	fake := testutil.NewFakeBaseNode(t)
	fake.SetNetworkState(testutil.ReadyNetworkState(260, 1700000000))
	fake.SetChain(map[uint64][]byte{210: {1, 210}, 160: {1, 160}})

	d := New(basenode.New(fake.Target(), fake.DialOptions()...), explorer.New(explorer.WithBaseURL(srv.URL())), protocol.NetworkMainnet)
	orphaned, err := d.CheckIfOrphaned(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.False(t, orphaned)
}
