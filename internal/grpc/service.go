package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Messages are
// google.protobuf.Struct documents shaped like the JSON API.
const ServiceName = "lotterydraft.v1.DraftViewService"

// DraftViewServer is the server API for DraftViewService.
type DraftViewServer interface {
	GetView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GeneratePick(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateTeamName(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamEvents(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(DraftViewServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DraftViewServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DraftViewServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DraftViewServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetView", DraftViewServer.GetView),
		unary("GeneratePick", DraftViewServer.GeneratePick),
		unary("UpdateTeamName", DraftViewServer.UpdateTeamName),
		unary("ResetDraft", DraftViewServer.ResetDraft),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(DraftViewServer).StreamEvents(in, stream)
			},
		},
	},
	Metadata: "lotterydraft/v1/draft_view.proto",
}

// Client is a thin caller for DraftViewService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetView(ctx context.Context, viewID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetView", map[string]any{FieldViewID: viewID}, opts...)
}

func (c *Client) GeneratePick(ctx context.Context, viewID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GeneratePick", map[string]any{FieldViewID: viewID}, opts...)
}

func (c *Client) UpdateTeamName(ctx context.Context, viewID string, index int, name string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "UpdateTeamName", map[string]any{FieldViewID: viewID, FieldIndex: index, FieldName: name}, opts...)
}

func (c *Client) ResetDraft(ctx context.Context, viewID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ResetDraft", map[string]any{FieldViewID: viewID}, opts...)
}

// EventStream receives StreamEvents messages.
type EventStream struct {
	grpc.ClientStream
}

func (s *EventStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := s.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// StreamEvents subscribes to one view's changes; an empty viewID subscribes to all.
func (c *Client) StreamEvents(ctx context.Context, viewID string, opts ...grpc.CallOption) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/StreamEvents", opts...)
	if err != nil {
		return nil, err
	}
	in, err := structpb.NewStruct(map[string]any{FieldViewID: viewID})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{ClientStream: stream}, nil
}
