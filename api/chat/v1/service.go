package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "chat.v1.ChatService"

// Full method names, used by interceptors to select policies.
const (
	ChatService_Register_FullMethodName           = "/chat.v1.ChatService/Register"
	ChatService_Login_FullMethodName              = "/chat.v1.ChatService/Login"
	ChatService_ListChats_FullMethodName          = "/chat.v1.ChatService/ListChats"
	ChatService_GetRecommendations_FullMethodName = "/chat.v1.ChatService/GetRecommendations"
	ChatService_Events_FullMethodName             = "/chat.v1.ChatService/Events"
)

// ChatServiceServer is the server API for ChatService.
type ChatServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	GetRecommendations(context.Context, *RecommendationsRequest) (*RecommendationsResponse, error)
	// Events is the real-time channel: client events in, notifications out.
	Events(ChatService_EventsServer) error
}

// UnimplementedChatServiceServer can be embedded to have forward compatible implementations.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) Register(context.Context, *RegisterRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedChatServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedChatServiceServer) ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListChats not implemented")
}
func (UnimplementedChatServiceServer) GetRecommendations(context.Context, *RecommendationsRequest) (*RecommendationsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRecommendations not implemented")
}
func (UnimplementedChatServiceServer) Events(ChatService_EventsServer) error {
	return status.Error(codes.Unimplemented, "method Events not implemented")
}

// ChatService_EventsServer is the server side of the Events stream.
type ChatService_EventsServer interface {
	Send(*ServerEvent) error
	Recv() (*ClientEvent, error)
	grpc.ServerStream
}

type chatServiceEventsServer struct {
	grpc.ServerStream
}

func (x *chatServiceEventsServer) Send(m *ServerEvent) error {
	return x.ServerStream.SendMsg(m)
}

func (x *chatServiceEventsServer) Recv() (*ClientEvent, error) {
	m := new(ClientEvent)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatService_Register_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func loginHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LoginRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatService_Login_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).Login(ctx, req.(*LoginRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listChatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListChatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).ListChats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatService_ListChats_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).ListChats(ctx, req.(*ListChatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getRecommendationsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecommendationsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).GetRecommendations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatService_GetRecommendations_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).GetRecommendations(ctx, req.(*RecommendationsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServiceServer).Events(&chatServiceEventsServer{stream})
}

// ChatService_ServiceDesc is the grpc.ServiceDesc for ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: registerHandler},
		{MethodName: "Login", Handler: loginHandler},
		{MethodName: "ListChats", Handler: listChatsHandler},
		{MethodName: "GetRecommendations", Handler: getRecommendationsHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Events",
			Handler:       eventsHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "chat/v1",
}
