package main

import (
	"context"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/PaulBabatuyi/tumatch-chat/internal/auth"
	"github.com/PaulBabatuyi/tumatch-chat/internal/chat"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/presence"
	"github.com/PaulBabatuyi/tumatch-chat/internal/realtime"
	"github.com/PaulBabatuyi/tumatch-chat/internal/recommend"
	"go.mongodb.org/mongo-driver/v2/bson"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type userStore interface {
	CreateUser(ctx context.Context, u *data.User) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
}

type skillStore interface {
	UpsertSkills(ctx context.Context, skills []data.Skill) ([]bson.ObjectID, error)
}

// chatService is implemented by *chat.Engine.
type chatService interface {
	realtime.Engine
	ListChats(ctx context.Context, userID string) ([]chat.View, error)
}

type recommender interface {
	RecommendWithPreview(ctx context.Context, userID string, pageSize int) *recommend.Preview
}

// Server implements the chat service on top of the stores, the chat engine and the
// presence registry. The WebSocket gateway shares it.
type Server struct {
	v1.UnimplementedChatServiceServer

	users    userStore
	skills   skillStore
	chats    chatService
	recs     recommender
	presence *presence.Registry
	auth     *auth.JWTManager

	// eventLimiter throttles real-time events per user; nil disables it.
	eventLimiter realtime.Limiter
	pageSize     int
}

type serverDeps struct {
	Users        userStore
	Skills       skillStore
	Chats        chatService
	Recommender  recommender
	Presence     *presence.Registry
	Auth         *auth.JWTManager
	EventLimiter realtime.Limiter
	PageSize     int
}

// newServer returns a ready-to-use Server.
func newServer(d serverDeps) *Server {
	if d.PageSize <= 0 {
		d.PageSize = 10
	}
	return &Server{
		users:        d.Users,
		skills:       d.Skills,
		chats:        d.Chats,
		recs:         d.Recommender,
		presence:     d.Presence,
		auth:         d.Auth,
		eventLimiter: d.EventLimiter,
		pageSize:     d.PageSize,
	}
}

// newSession starts a real-time session for a connection authenticated as userID.
func (s *Server) newSession(userID string, sender presence.Sender) *realtime.Session {
	return realtime.NewSession(userID, sender, s.presence, s.chats, s.eventLimiter)
}

// registerService registers the ChatService and the standard health service on s.
func registerService(s *grpc.Server, srv *Server) *health.Server {
	v1.RegisterChatServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(v1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}
