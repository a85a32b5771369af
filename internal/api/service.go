package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "tari.rpc.BaseNode"

const (
	MethodGetNetworkState    = "/" + ServiceName + "/GetNetworkState"
	MethodGetBlocks          = "/" + ServiceName + "/GetBlocks"
	MethodIdentify           = "/" + ServiceName + "/Identify"
	MethodGetTipInfo         = "/" + ServiceName + "/GetTipInfo"
	MethodGetSyncProgress    = "/" + ServiceName + "/GetSyncProgress"
	MethodListConnectedPeers = "/" + ServiceName + "/ListConnectedPeers"
	MethodGetVersion         = "/" + ServiceName + "/GetVersion"
)

// BaseNodeServer is the server side of the base node service. Only test
// fakes implement it in this repository.
type BaseNodeServer interface {
	GetNetworkState(context.Context, *Empty) (*GetNetworkStateResponse, error)
	GetBlocks(*GetBlocksRequest, GetBlocksServer) error
	Identify(context.Context, *Empty) (*NodeIdentity, error)
	GetTipInfo(context.Context, *Empty) (*TipInfoResponse, error)
	GetSyncProgress(context.Context, *Empty) (*SyncProgressResponse, error)
	ListConnectedPeers(context.Context, *Empty) (*ListConnectedPeersResponse, error)
	GetVersion(context.Context, *Empty) (*StringValue, error)
}

type GetBlocksServer interface {
	Send(*HistoricalBlock) error
	grpc.ServerStream
}

type getBlocksServer struct {
	grpc.ServerStream
}

func (s *getBlocksServer) Send(m *HistoricalBlock) error {
	return s.ServerStream.SendMsg(m)
}

// RegisterBaseNodeServer registers srv on s. The server must be created with
// ServerOption so requests decode through Codec.
func RegisterBaseNodeServer(s grpc.ServiceRegistrar, srv BaseNodeServer) {
	s.RegisterService(&BaseNodeServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a grpc.MethodDesc handler.
func unaryHandler[Req any, Resp any, PReq interface {
	*Req
	Message
}](method string, call func(BaseNodeServer, context.Context, PReq) (Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BaseNodeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(BaseNodeServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func getBlocksHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(GetBlocksRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BaseNodeServer).GetBlocks(in, &getBlocksServer{stream})
}

var BaseNodeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BaseNodeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetNetworkState",
			Handler:    unaryHandler(MethodGetNetworkState, BaseNodeServer.GetNetworkState),
		},
		{
			MethodName: "Identify",
			Handler:    unaryHandler(MethodIdentify, BaseNodeServer.Identify),
		},
		{
			MethodName: "GetTipInfo",
			Handler:    unaryHandler(MethodGetTipInfo, BaseNodeServer.GetTipInfo),
		},
		{
			MethodName: "GetSyncProgress",
			Handler:    unaryHandler(MethodGetSyncProgress, BaseNodeServer.GetSyncProgress),
		},
		{
			MethodName: "ListConnectedPeers",
			Handler:    unaryHandler(MethodListConnectedPeers, BaseNodeServer.ListConnectedPeers),
		},
		{
			MethodName: "GetVersion",
			Handler:    unaryHandler(MethodGetVersion, BaseNodeServer.GetVersion),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetBlocks",
			Handler:       getBlocksHandler,
			ServerStreams: true,
		},
	},
	Metadata: "base_node.proto",
}

// BaseNodeClient is the client side of the base node service.
type BaseNodeClient struct {
	cc grpc.ClientConnInterface
}

func NewBaseNodeClient(cc grpc.ClientConnInterface) *BaseNodeClient {
	return &BaseNodeClient{cc: cc}
}

func (c *BaseNodeClient) invoke(ctx context.Context, method string, in, out Message, opts []grpc.CallOption) error {
	return c.cc.Invoke(ctx, method, in, out, append([]grpc.CallOption{CallOption()}, opts...)...)
}

func (c *BaseNodeClient) GetNetworkState(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*GetNetworkStateResponse, error) {
	out := new(GetNetworkStateResponse)
	if err := c.invoke(ctx, MethodGetNetworkState, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BaseNodeClient) Identify(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*NodeIdentity, error) {
	out := new(NodeIdentity)
	if err := c.invoke(ctx, MethodIdentify, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BaseNodeClient) GetTipInfo(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*TipInfoResponse, error) {
	out := new(TipInfoResponse)
	if err := c.invoke(ctx, MethodGetTipInfo, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BaseNodeClient) GetSyncProgress(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SyncProgressResponse, error) {
	out := new(SyncProgressResponse)
	if err := c.invoke(ctx, MethodGetSyncProgress, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BaseNodeClient) ListConnectedPeers(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListConnectedPeersResponse, error) {
	out := new(ListConnectedPeersResponse)
	if err := c.invoke(ctx, MethodListConnectedPeers, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BaseNodeClient) GetVersion(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*StringValue, error) {
	out := new(StringValue)
	if err := c.invoke(ctx, MethodGetVersion, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBlocksClient receives the GetBlocks server stream.
type GetBlocksClient interface {
	Recv() (*HistoricalBlock, error)
	grpc.ClientStream
}

type getBlocksClient struct {
	grpc.ClientStream
}

func (x *getBlocksClient) Recv() (*HistoricalBlock, error) {
	m := new(HistoricalBlock)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *BaseNodeClient) GetBlocks(ctx context.Context, in *GetBlocksRequest, opts ...grpc.CallOption) (GetBlocksClient, error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &BaseNodeServiceDesc.Streams[0], MethodGetBlocks, opts...)
	if err != nil {
		return nil, err
	}
	x := &getBlocksClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
