// Package middleware holds gRPC interceptors shared by the API server.
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/op/go-logging"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var log = logging.MustGetLogger("middleware")

// idleAfter is how long a key may go unused before its limiter is dropped.
const idleAfter = 10 * time.Minute

// LimiterStore maintains per-key token buckets and periodically forgets idle keys.
// Keys are free-form: "email:<addr>" for auth calls, "events:<user>" for real-time events,
// the peer address otherwise.
type LimiterStore struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientEntry
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore creates a store allowing limitPerMinute events per key with the given
// burst. A non-positive limit defaults to 60 per minute. Cleanup runs every
// cleanupInterval until Stop is called.
func NewLimiterStore(limitPerMinute, burst int, cleanupInterval time.Duration) *LimiterStore {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &LimiterStore{
		limit:   rate.Every(time.Minute / time.Duration(limitPerMinute)),
		burst:   burst,
		clients: map[string]*clientEntry{},
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go s.cleanupLoop(cleanupInterval)
	return s
}

func (s *LimiterStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *LimiterStore) sweep() {
	cutoff := s.now().Add(-idleAfter)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.clients {
		if v.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *LimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.clients[key]; ok {
		e.lastSeen = s.now()
		return e.limiter
	}
	limiter := rate.NewLimiter(s.limit, s.burst)
	s.clients[key] = &clientEntry{limiter: limiter, lastSeen: s.now()}
	return limiter
}

// Allow reports whether an event for key is permitted now.
func (s *LimiterStore) Allow(key string) bool {
	return s.getLimiter(key).Allow()
}

// Len returns the number of tracked keys.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func peerKey(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

// RateLimitUnaryInterceptor limits the listed methods. Requests carrying an email
// (Register, Login) are keyed by it so one account cannot be brute-forced from many
// addresses; everything else is keyed by peer address.
func RateLimitUnaryInterceptor(store *LimiterStore, limitedMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limitedMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		key := peerKey(ctx)
		type emailGetter interface{ GetEmail() string }
		if eg, ok := req.(emailGetter); ok {
			if e := eg.GetEmail(); e != "" {
				key = fmt.Sprintf("email:%s", e)
			}
		}

		if !store.Allow(key) {
			log.Warningf("rate limit exceeded for %s on %s", key, info.FullMethod)
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// RateLimitStreamInterceptor limits how often a peer may open the listed streams.
func RateLimitStreamInterceptor(store *LimiterStore, limitedMethods map[string]bool) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !limitedMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		key := "stream:" + peerKey(ss.Context())
		if !store.Allow(key) {
			log.Warningf("rate limit exceeded for %s on %s", key, info.FullMethod)
			return status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(srv, ss)
	}
}
