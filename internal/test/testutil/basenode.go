package testutil

import (
	"context"
	"sync"
	"testing"

	"nodewatch/internal/api"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeBaseNode is an in-memory base node served over bufconn. Responses are
// set with the Handle* and Set* methods and may be changed while serving.
type FakeBaseNode struct {
	t      *testing.T
	server *TestGRPCServer

	mu           sync.Mutex
	calls        map[string]int
	networkState func(context.Context) (*api.GetNetworkStateResponse, error)
	identify     func(context.Context) (*api.NodeIdentity, error)
	tipInfo      func(context.Context) (*api.TipInfoResponse, error)
	syncProgress func(context.Context) (*api.SyncProgressResponse, error)
	peers        func(context.Context) (*api.ListConnectedPeersResponse, error)
	version      func(context.Context) (*api.StringValue, error)
	blocks       func(*api.GetBlocksRequest) ([]*api.HistoricalBlock, error)
}

// NewFakeBaseNode starts a fake node. Every call answers Unimplemented until
// a handler is installed, except Identify which returns a valid identity.
func NewFakeBaseNode(t *testing.T) *FakeBaseNode {
	f := &FakeBaseNode{
		t:     t,
		calls: make(map[string]int),
	}
	f.SetIdentity(NewTestIdentity(t))
	f.server = NewTestGRPCServer(t, func(s *grpc.Server) {
		api.RegisterBaseNodeServer(s, f)
	}, api.ServerOption())
	return f
}

// DialOptions route a client to this fake.
func (f *FakeBaseNode) DialOptions() []grpc.DialOption {
	return f.server.DialOptions()
}

// Target is the address to pass along with DialOptions.
func (f *FakeBaseNode) Target() string {
	return BufnetTarget
}

// Stop takes the fake node offline.
func (f *FakeBaseNode) Stop() {
	f.server.Stop()
}

// Calls returns how often method ("GetNetworkState", "GetBlocks", ...) was
// invoked.
func (f *FakeBaseNode) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeBaseNode) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *FakeBaseNode) HandleNetworkState(fn func(context.Context) (*api.GetNetworkStateResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networkState = fn
}

func (f *FakeBaseNode) SetNetworkState(res *api.GetNetworkStateResponse) {
	f.HandleNetworkState(func(context.Context) (*api.GetNetworkStateResponse, error) { return res, nil })
}

func (f *FakeBaseNode) HandleIdentify(fn func(context.Context) (*api.NodeIdentity, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identify = fn
}

func (f *FakeBaseNode) SetIdentity(res *api.NodeIdentity) {
	f.HandleIdentify(func(context.Context) (*api.NodeIdentity, error) { return res, nil })
}

func (f *FakeBaseNode) HandleTipInfo(fn func(context.Context) (*api.TipInfoResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tipInfo = fn
}

func (f *FakeBaseNode) SetTipInfo(res *api.TipInfoResponse) {
	f.HandleTipInfo(func(context.Context) (*api.TipInfoResponse, error) { return res, nil })
}

func (f *FakeBaseNode) HandleSyncProgress(fn func(context.Context) (*api.SyncProgressResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncProgress = fn
}

func (f *FakeBaseNode) SetSyncProgress(res *api.SyncProgressResponse) {
	f.HandleSyncProgress(func(context.Context) (*api.SyncProgressResponse, error) { return res, nil })
}

func (f *FakeBaseNode) SetPeers(peers ...*api.Peer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers = func(context.Context) (*api.ListConnectedPeersResponse, error) {
		return &api.ListConnectedPeersResponse{ConnectedPeers: peers}, nil
	}
}

func (f *FakeBaseNode) SetVersion(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version = func(context.Context) (*api.StringValue, error) {
		return &api.StringValue{Value: v}, nil
	}
}

func (f *FakeBaseNode) HandleBlocks(fn func(*api.GetBlocksRequest) ([]*api.HistoricalBlock, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = fn
}

// SetChain serves a block for every height in hashes. Requested heights
// without an entry are silently omitted, like a pruned node.
func (f *FakeBaseNode) SetChain(hashes map[uint64][]byte) {
	f.HandleBlocks(func(req *api.GetBlocksRequest) ([]*api.HistoricalBlock, error) {
		var out []*api.HistoricalBlock
		for _, h := range req.Heights {
			if hash, ok := hashes[h]; ok {
				out = append(out, HistoricalBlock(h, hash))
			}
		}
		return out, nil
	})
}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "%s not configured on fake node", method)
}

func (f *FakeBaseNode) GetNetworkState(ctx context.Context, _ *api.Empty) (*api.GetNetworkStateResponse, error) {
	f.record("GetNetworkState")
	f.mu.Lock()
	fn := f.networkState
	f.mu.Unlock()
	if fn == nil {
		return nil, unimplemented("GetNetworkState")
	}
	return fn(ctx)
}

func (f *FakeBaseNode) GetBlocks(req *api.GetBlocksRequest, stream api.GetBlocksServer) error {
	f.record("GetBlocks")
	f.mu.Lock()
	fn := f.blocks
	f.mu.Unlock()
	if fn == nil {
		return unimplemented("GetBlocks")
	}
	blocks, err := fn(req)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := stream.Send(b); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeBaseNode) Identify(ctx context.Context, _ *api.Empty) (*api.NodeIdentity, error) {
	f.record("Identify")
	f.mu.Lock()
	fn := f.identify
	f.mu.Unlock()
	if fn == nil {
		return nil, unimplemented("Identify")
	}
	return fn(ctx)
}

func (f *FakeBaseNode) GetTipInfo(ctx context.Context, _ *api.Empty) (*api.TipInfoResponse, error) {
	f.record("GetTipInfo")
	f.mu.Lock()
	fn := f.tipInfo
	f.mu.Unlock()
	if fn == nil {
		return nil, unimplemented("GetTipInfo")
	}
	return fn(ctx)
}

func (f *FakeBaseNode) GetSyncProgress(ctx context.Context, _ *api.Empty) (*api.SyncProgressResponse, error) {
	f.record("GetSyncProgress")
	f.mu.Lock()
	fn := f.syncProgress
	f.mu.Unlock()
	if fn == nil {
		return nil, unimplemented("GetSyncProgress")
	}
	return fn(ctx)
}

func (f *FakeBaseNode) ListConnectedPeers(ctx context.Context, _ *api.Empty) (*api.ListConnectedPeersResponse, error) {
	f.record("ListConnectedPeers")
	f.mu.Lock()
	fn := f.peers
	f.mu.Unlock()
	if fn == nil {
		return nil, unimplemented("ListConnectedPeers")
	}
	return fn(ctx)
}

func (f *FakeBaseNode) GetVersion(ctx context.Context, _ *api.Empty) (*api.StringValue, error) {
	f.record("GetVersion")
	f.mu.Lock()
	fn := f.version
	f.mu.Unlock()
	if fn == nil {
		return nil, unimplemented("GetVersion")
	}
	return fn(ctx)
}

// NewTestIdentity returns an identity with a freshly generated, valid key.
func NewTestIdentity(t *testing.T) *api.NodeIdentity {
	_, pub, err := schnorrkel.GenerateKeypair()
	require.NoError(t, err)
	raw := pub.Encode()
	return &api.NodeIdentity{
		PublicKey:       raw[:],
		PublicAddresses: []string{"/ip4/127.0.0.1/tcp/18189"},
		NodeId:          raw[:13],
	}
}

// HistoricalBlock builds a streamed block with just a header.
func HistoricalBlock(height uint64, hash []byte) *api.HistoricalBlock {
	return &api.HistoricalBlock{Block: &api.Block{Header: &api.BlockHeader{Height: height, Hash: hash}}}
}

// ReadyNetworkState is a synced, connected, ready node at height and
// block time.
func ReadyNetworkState(height, blockTime uint64) *api.GetNetworkStateResponse {
	ready := int32(100)
	return &api.GetNetworkStateResponse{
		Metadata:            &api.MetaData{BestBlockHeight: height, Timestamp: blockTime},
		InitialSyncAchieved: true,
		NumConnections:      8,
		Reward:              13_000_000,
		ReadinessStatus:     &api.ReadinessStatus{State: &ready},
	}
}
