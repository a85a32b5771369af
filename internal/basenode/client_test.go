package basenode

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"nodewatch/internal/api"
	"nodewatch/internal/protocol"
	"nodewatch/internal/readiness"
	"nodewatch/internal/test/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestClient(t *testing.T) (*testutil.FakeBaseNode, *Client) {
	fake := testutil.NewFakeBaseNode(t)
	return fake, New(fake.Target(), fake.DialOptions()...)
}

func TestGetNetworkState(t *testing.T) {
	fake, client := newTestClient(t)
	ctx := testutil.NewTestContext(t)

	res := testutil.ReadyNetworkState(1234, 1700000000)
	res.Sha3xEstimatedHashRate = 11
	res.MoneroRandomxEstimatedHashRate = 22
	res.TariRandomxEstimatedHashRate = 33
	fake.SetNetworkState(res)

	got, err := client.GetNetworkState(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.NodeStatus{
		ShaNetworkHashrate:           11,
		MoneroRandomxNetworkHashrate: 22,
		TariRandomxNetworkHashrate:   33,
		BlockReward:                  13_000_000,
		BlockHeight:                  1234,
		BlockTime:                    1700000000,
		IsSynced:                     true,
		NumConnections:               8,
		ReadinessStatus:              readiness.Ready,
	}, got)
}

func TestGetNetworkStateDefaults(t *testing.T) {
	fake, client := newTestClient(t)
	fake.SetNetworkState(&api.GetNetworkStateResponse{NumConnections: 3})

	got, err := client.GetNetworkState(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.Zero(t, got.BlockHeight)
	assert.Zero(t, got.BlockTime)
	assert.Equal(t, readiness.NotReady, got.ReadinessStatus)
	assert.Equal(t, uint64(3), got.NumConnections)
}

func TestGetNetworkStateErrors(t *testing.T) {
	t.Run("node error is unknown", func(t *testing.T) {
		fake, client := newTestClient(t)
		fake.HandleNetworkState(func(context.Context) (*api.GetNetworkStateResponse, error) {
			return nil, status.Error(codes.Internal, "db locked")
		})

		_, err := client.GetNetworkState(testutil.NewTestContext(t))
		var unknown *UnknownError
		require.ErrorAs(t, err, &unknown)
		assert.False(t, errors.Is(err, ErrNodeNotStarted))
		assert.Equal(t, codes.Internal, status.Code(errors.Unwrap(unknown.Err)))
	})

	t.Run("unreachable node is not started", func(t *testing.T) {
		fake, client := newTestClient(t)
		fake.Stop()

		_, err := client.GetNetworkState(testutil.NewTestContext(t))
		assert.ErrorIs(t, err, ErrNodeNotStarted)
	})

	t.Run("deadline is a timeout", func(t *testing.T) {
		fake, client := newTestClient(t)
		fake.HandleNetworkState(func(ctx context.Context) (*api.GetNetworkStateResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := client.GetNetworkState(ctx)
		require.Error(t, err)
		assert.True(t, IsTimeout(err))
	})
}

func TestGetHistoricalBlocks(t *testing.T) {
	fake, client := newTestClient(t)
	fake.SetChain(map[uint64][]byte{
		100: {0xAB, 0x01},
		200: {0x00, 0xff},
	})

	blocks, err := client.GetHistoricalBlocks(testutil.NewTestContext(t), []uint64{200, 150, 100})
	require.NoError(t, err)
	assert.Equal(t, []protocol.Block{
		{Height: 200, Hash: "00ff"},
		{Height: 100, Hash: "ab01"},
	}, blocks)
}

func TestGetHistoricalBlocksMissingHeader(t *testing.T) {
	fake, client := newTestClient(t)
	fake.HandleBlocks(func(*api.GetBlocksRequest) ([]*api.HistoricalBlock, error) {
		return []*api.HistoricalBlock{
			testutil.HistoricalBlock(10, []byte{1}),
			{Block: &api.Block{}},
		}, nil
	})

	_, err := client.GetHistoricalBlocks(testutil.NewTestContext(t), []uint64{10, 11})
	assert.ErrorIs(t, err, ErrMissingBlockData)
}

func TestGetHistoricalBlocksStreamError(t *testing.T) {
	fake, client := newTestClient(t)
	fake.HandleBlocks(func(*api.GetBlocksRequest) ([]*api.HistoricalBlock, error) {
		return nil, status.Error(codes.NotFound, "pruned")
	})

	_, err := client.GetHistoricalBlocks(testutil.NewTestContext(t), []uint64{1})
	var unknown *UnknownError
	assert.ErrorAs(t, err, &unknown)
}

func TestIdentify(t *testing.T) {
	fake, client := newTestClient(t)
	want := testutil.NewTestIdentity(t)
	fake.SetIdentity(want)

	id, err := client.Identify(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want.PublicKey), id.PublicKey)
	assert.Equal(t, want.PublicAddresses, id.PublicAddresses)

	fake.SetIdentity(&api.NodeIdentity{PublicKey: []byte{1, 2}})
	_, err = client.Identify(testutil.NewTestContext(t))
	var unknown *UnknownError
	assert.ErrorAs(t, err, &unknown)
}

func TestTipInfoAndSyncProgress(t *testing.T) {
	fake, client := newTestClient(t)
	fake.SetTipInfo(&api.TipInfoResponse{
		Metadata:            &api.MetaData{BestBlockHeight: 77},
		InitialSyncAchieved: true,
	})
	fake.SetSyncProgress(&api.SyncProgressResponse{
		TipHeight:   100,
		LocalHeight: 50,
		State:       api.SyncStateBlock,
	})

	ctx := testutil.NewTestContext(t)
	tip, err := client.GetTipInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), tip.Metadata.BestBlockHeight)
	assert.True(t, tip.InitialSyncAchieved)

	progress, err := client.GetSyncProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.SyncStateBlock, progress.State)
	assert.Equal(t, uint64(50), progress.LocalHeight)
}

func TestCheckVersion(t *testing.T) {
	fake, client := newTestClient(t)
	ctx := testutil.NewTestContext(t)
	gate, err := protocol.NewVersionGate("1.9.0")
	require.NoError(t, err)

	fake.SetVersion("v2.1.0")
	v, err := client.CheckVersion(ctx, gate)
	require.NoError(t, err)
	assert.Equal(t, "v2.1.0", v)

	fake.SetVersion("1.8.0")
	_, err = client.CheckVersion(ctx, gate)
	assert.ErrorIs(t, err, ErrVersionTooOld)

	fake.SetVersion("unknown")
	_, err = client.CheckVersion(ctx, gate)
	var unknown *UnknownError
	assert.ErrorAs(t, err, &unknown)
}

func TestNewFromHostPort(t *testing.T) {
	assert.Equal(t, "127.0.0.1:18142", NewFromHostPort("127.0.0.1", 18142).Addr())
	assert.Equal(t, "[::1]:18142", NewFromHostPort("::1", 18142).Addr())
}
