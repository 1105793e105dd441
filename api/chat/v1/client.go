package v1

import (
	"context"

	"google.golang.org/grpc"
)

// ChatServiceClient is the client API for ChatService. Every call is sent with the JSON
// content-subtype.
type ChatServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	ListChats(ctx context.Context, in *ListChatsRequest, opts ...grpc.CallOption) (*ListChatsResponse, error)
	GetRecommendations(ctx context.Context, in *RecommendationsRequest, opts ...grpc.CallOption) (*RecommendationsResponse, error)
	Events(ctx context.Context, opts ...grpc.CallOption) (ChatService_EventsClient, error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *chatServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.cc.Invoke(ctx, ChatService_Register_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.cc.Invoke(ctx, ChatService_Login_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) ListChats(ctx context.Context, in *ListChatsRequest, opts ...grpc.CallOption) (*ListChatsResponse, error) {
	out := new(ListChatsResponse)
	if err := c.cc.Invoke(ctx, ChatService_ListChats_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) GetRecommendations(ctx context.Context, in *RecommendationsRequest, opts ...grpc.CallOption) (*RecommendationsResponse, error) {
	out := new(RecommendationsResponse)
	if err := c.cc.Invoke(ctx, ChatService_GetRecommendations_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatService_EventsClient is the client side of the Events stream.
type ChatService_EventsClient interface {
	Send(*ClientEvent) error
	Recv() (*ServerEvent, error)
	grpc.ClientStream
}

type chatServiceEventsClient struct {
	grpc.ClientStream
}

func (c *chatServiceClient) Events(ctx context.Context, opts ...grpc.CallOption) (ChatService_EventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ChatService_ServiceDesc.Streams[0], ChatService_Events_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &chatServiceEventsClient{stream}, nil
}

func (x *chatServiceEventsClient) Send(m *ClientEvent) error {
	return x.ClientStream.SendMsg(m)
}

func (x *chatServiceEventsClient) Recv() (*ServerEvent, error) {
	m := new(ServerEvent)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
