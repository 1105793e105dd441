package main

import (
	"context"
	"strings"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/PaulBabatuyi/tumatch-chat/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type authContextKey struct{}

// methods that don't require authentication
var publicMethods = map[string]bool{
	v1.ChatService_Register_FullMethodName: true,
	v1.ChatService_Login_FullMethodName:    true,
	"/grpc.health.v1.Health/Check":         true,
	"/grpc.health.v1.Health/Watch":         true,
}

func withClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, authContextKey{}, c)
}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(authContextKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// bearerToken strips an optional "Bearer " prefix.
func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	if len(h) >= 7 && strings.EqualFold(h[:7], "bearer ") {
		h = h[7:]
	}
	return strings.TrimSpace(h)
}

// authenticate verifies the authorization metadata of an incoming call.
func authenticate(ctx context.Context, j *auth.JWTManager) (*auth.Claims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, status.Errorf(codes.Unauthenticated, "missing authorization header")
	}
	token := bearerToken(authHeaders[0])
	if token == "" {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token")
	}
	claims, err := j.VerifyToken(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
	}
	return claims, nil
}

// authUnaryInterceptor enforces JWT authentication for all methods except publicMethods.
func authUnaryInterceptor(j *auth.JWTManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		claims, err := authenticate(ctx, j)
		if err != nil {
			return nil, err
		}
		return handler(withClaims(ctx, claims), req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(j *auth.JWTManager) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if publicMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		claims, err := authenticate(ss.Context(), j)
		if err != nil {
			return err
		}
		return handler(srv, claimsStream{ServerStream: ss, ctx: withClaims(ss.Context(), claims)})
	}
}

// claimsStream overrides Context so handlers see the verified claims.
type claimsStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (g claimsStream) Context() context.Context { return g.ctx }
