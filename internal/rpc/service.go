package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gophledger.LedgerStore"

const (
	FullMethodGet    = "/" + ServiceName + "/Get"
	FullMethodList   = "/" + ServiceName + "/List"
	FullMethodCommit = "/" + ServiceName + "/Commit"
	FullMethodPing   = "/" + ServiceName + "/Ping"
	FullMethodWatch  = "/" + ServiceName + "/Watch"
)

// LedgerStoreServer is implemented by the store server.
type LedgerStoreServer interface {
	Get(context.Context, *GetRequest) (*GetResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	Commit(context.Context, *CommitRequest) (*CommitResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Watch(*WatchRequest, WatchServer) error
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Send(*Snapshot) error
	grpc.ServerStream
}

type watchServer struct {
	grpc.ServerStream
}

func (x *watchServer) Send(m *Snapshot) error {
	return x.ServerStream.SendMsg(m)
}

func unaryHandler[Req any](fullMethod string, call func(LedgerStoreServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerStoreServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(LedgerStoreServer).Watch(in, &watchServer{stream})
}

// ServiceDesc describes gophledger.LedgerStore for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Get",
			Handler: unaryHandler(FullMethodGet, func(s LedgerStoreServer, ctx context.Context, in *GetRequest) (any, error) {
				return s.Get(ctx, in)
			}),
		},
		{
			MethodName: "List",
			Handler: unaryHandler(FullMethodList, func(s LedgerStoreServer, ctx context.Context, in *ListRequest) (any, error) {
				return s.List(ctx, in)
			}),
		},
		{
			MethodName: "Commit",
			Handler: unaryHandler(FullMethodCommit, func(s LedgerStoreServer, ctx context.Context, in *CommitRequest) (any, error) {
				return s.Commit(ctx, in)
			}),
		},
		{
			MethodName: "Ping",
			Handler: unaryHandler(FullMethodPing, func(s LedgerStoreServer, ctx context.Context, in *PingRequest) (any, error) {
				return s.Ping(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
}

// RegisterLedgerStoreServer registers srv on s.
func RegisterLedgerStoreServer(s grpc.ServiceRegistrar, srv LedgerStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// WatchClient is the client side of a Watch stream.
type WatchClient interface {
	Recv() (*Snapshot, error)
	grpc.ClientStream
}

type watchClient struct {
	grpc.ClientStream
}

func (x *watchClient) Recv() (*Snapshot, error) {
	m := new(Snapshot)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Client calls gophledger.LedgerStore. Every call is sent with the JSON
// content-subtype.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *Client) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	out := new(GetResponse)
	if err := c.cc.Invoke(ctx, FullMethodGet, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	out := new(ListResponse)
	if err := c.cc.Invoke(ctx, FullMethodList, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error) {
	out := new(CommitResponse)
	if err := c.cc.Invoke(ctx, FullMethodCommit, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, FullMethodPing, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethodWatch, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &watchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
