// Package basenode is the gRPC client for the base node. The client is
// stateless: every call dials a fresh connection and closes it afterwards, so
// a single Client can be shared by all components.
package basenode

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"nodewatch/internal/api"
	"nodewatch/internal/identity"
	"nodewatch/internal/protocol"
	"nodewatch/internal/readiness"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var log = logrus.WithField("component", "basenode")

// Client talks to a single base node gRPC endpoint.
type Client struct {
	addr     string
	dialOpts []grpc.DialOption
	now      func() time.Time
}

// New creates a client for addr ("host:port"). Extra dial options are
// appended after the insecure transport credentials.
func New(addr string, opts ...grpc.DialOption) *Client {
	return &Client{
		addr:     addr,
		dialOpts: opts,
		now:      time.Now,
	}
}

// NewFromHostPort creates a client for host and port.
func NewFromHostPort(host string, port uint16, opts ...grpc.DialOption) *Client {
	return New(net.JoinHostPort(host, strconv.Itoa(int(port))), opts...)
}

// Addr returns the target address.
func (c *Client) Addr() string {
	return c.addr
}

// connect dials the node. The returned close func must always be called.
func (c *Client) connect(ctx context.Context) (*api.BaseNodeClient, func(), error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, c.dialOpts...)

	conn, err := grpc.DialContext(ctx, c.addr, opts...)
	if err != nil {
		log.WithError(err).WithField("addr", c.addr).Debug("Failed to dial base node")
		return nil, func() {}, fmt.Errorf("dial %s: %w", c.addr, ErrNodeNotStarted)
	}
	return api.NewBaseNodeClient(conn), func() { conn.Close() }, nil
}

// GetNetworkState returns the node's current status snapshot.
func (c *Client) GetNetworkState(ctx context.Context) (protocol.NodeStatus, error) {
	client, closeConn, err := c.connect(ctx)
	defer closeConn()
	if err != nil {
		return protocol.NodeStatus{}, err
	}

	res, err := client.GetNetworkState(ctx, &api.Empty{})
	if err != nil {
		return protocol.NodeStatus{}, classify("get network state", err)
	}
	return statusFromWire(res), nil
}

func statusFromWire(res *api.GetNetworkStateResponse) protocol.NodeStatus {
	status := protocol.NodeStatus{
		ShaNetworkHashrate:           res.Sha3xEstimatedHashRate,
		MoneroRandomxNetworkHashrate: res.MoneroRandomxEstimatedHashRate,
		TariRandomxNetworkHashrate:   res.TariRandomxEstimatedHashRate,
		BlockReward:                  protocol.MicroMinotari(res.Reward),
		IsSynced:                     res.InitialSyncAchieved,
		NumConnections:               res.NumConnections,
		ReadinessStatus:              readiness.FromWire(res.ReadinessStatus),
	}
	if res.Metadata != nil {
		status.BlockHeight = res.Metadata.BestBlockHeight
		status.BlockTime = res.Metadata.Timestamp
	}
	return status
}

// GetHistoricalBlocks streams the headers at the given heights. Hashes are
// lowercase hex. The stream stops at the first error.
func (c *Client) GetHistoricalBlocks(ctx context.Context, heights []uint64) ([]protocol.Block, error) {
	client, closeConn, err := c.connect(ctx)
	defer closeConn()
	if err != nil {
		return nil, err
	}

	stream, err := client.GetBlocks(ctx, &api.GetBlocksRequest{Heights: heights})
	if err != nil {
		return nil, classify("get blocks", err)
	}

	var blocks []protocol.Block
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return nil, classify("get blocks", err)
		}
		if res.Block == nil || res.Block.Header == nil {
			return nil, &UnknownError{Err: ErrMissingBlockData}
		}
		blocks = append(blocks, protocol.Block{
			Height: res.Block.Header.Height,
			Hash:   hex.EncodeToString(res.Block.Header.Hash),
		})
	}
}

// Identify fetches the node identity. It is used as a liveness probe.
func (c *Client) Identify(ctx context.Context) (*identity.NodeIdentity, error) {
	client, closeConn, err := c.connect(ctx)
	defer closeConn()
	if err != nil {
		return nil, err
	}

	res, err := client.Identify(ctx, &api.Empty{})
	if err != nil {
		return nil, classify("identify", err)
	}
	id, err := identity.FromWire(res)
	if err != nil {
		return nil, &UnknownError{Err: err}
	}
	return id, nil
}

// GetTipInfo returns the node's chain tip.
func (c *Client) GetTipInfo(ctx context.Context) (*api.TipInfoResponse, error) {
	client, closeConn, err := c.connect(ctx)
	defer closeConn()
	if err != nil {
		return nil, err
	}

	res, err := client.GetTipInfo(ctx, &api.Empty{})
	if err != nil {
		return nil, classify("get tip info", err)
	}
	return res, nil
}

// GetSyncProgress returns the node's sync state.
func (c *Client) GetSyncProgress(ctx context.Context) (*api.SyncProgressResponse, error) {
	client, closeConn, err := c.connect(ctx)
	defer closeConn()
	if err != nil {
		return nil, err
	}

	res, err := client.GetSyncProgress(ctx, &api.Empty{})
	if err != nil {
		return nil, classify("get sync progress", err)
	}
	return res, nil
}
