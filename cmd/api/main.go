package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/PaulBabatuyi/tumatch-chat/internal/auth"
	"github.com/PaulBabatuyi/tumatch-chat/internal/chat"
	"github.com/PaulBabatuyi/tumatch-chat/internal/config"
	"github.com/PaulBabatuyi/tumatch-chat/internal/logs"
	"github.com/PaulBabatuyi/tumatch-chat/internal/middleware"
	"github.com/PaulBabatuyi/tumatch-chat/internal/presence"
	"github.com/PaulBabatuyi/tumatch-chat/internal/recommend"
	"github.com/PaulBabatuyi/tumatch-chat/internal/storage"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var log = logging.MustGetLogger("api")

func main() {
	if err := run(); err != nil {
		log.Critical(err)
		os.Exit(1)
	}
}

func newJWTManager(c config.JWT) (*auth.JWTManager, error) {
	if c.Keys == "" {
		return auth.NewJWTManager(c.Secret, c.TTL), nil
	}
	keys, err := auth.ParseKeys(c.Keys)
	if err != nil {
		return nil, errors.Wrap(err, "invalid JWT_KEYS")
	}
	if _, ok := keys[c.ActiveKid]; !ok {
		log.Warningf("JWT_ACTIVE_KID %q not among JWT_KEYS; signing with the lexically smallest kid", c.ActiveKid)
	}
	return auth.NewJWTManagerFromKeys(keys, c.ActiveKid, c.TTL), nil
}

func run() error {
	cfg, err := config.Load("tumatch-api", os.Args[1:])
	if err != nil {
		return err
	}
	logFile, err := logs.Setup(os.Stdout, cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx := context.Background()

	stores, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		_ = stores.Close(context.Background())
	}()

	jwtMgr, err := newJWTManager(cfg.JWT)
	if err != nil {
		return err
	}

	// Register/Login: small burst to allow a couple of quick retries
	authLimiter := middleware.NewLimiterStore(cfg.RateLimit.RPM, cfg.RateLimit.Burst, time.Minute)
	defer authLimiter.Stop()
	eventLimiter := middleware.NewLimiterStore(cfg.RateLimit.EventsPerMinute, cfg.RateLimit.EventsBurst, time.Minute)
	defer eventLimiter.Stop()

	limitedUnary := map[string]bool{
		v1.ChatService_Register_FullMethodName: true,
		v1.ChatService_Login_FullMethodName:    true,
	}
	limitedStreams := map[string]bool{
		v1.ChatService_Events_FullMethodName: true,
	}

	var serverOpts []grpc.ServerOption
	if cfg.Server.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return errors.Wrap(err, "failed to load TLS certs")
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}
	// rate limiter -> auth
	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(
			middleware.RateLimitUnaryInterceptor(authLimiter, limitedUnary),
			authUnaryInterceptor(jwtMgr),
		),
		grpc.ChainStreamInterceptor(
			middleware.RateLimitStreamInterceptor(authLimiter, limitedStreams),
			authStreamInterceptor(jwtMgr),
		),
	)
	grpcServer := grpc.NewServer(serverOpts...)

	registry := presence.NewRegistry()
	engine := chat.NewEngine(stores.Chats, stores.Users, registry)
	recs := recommend.New(stores.Users, stores.Startups, recommend.WithLogoWidth(cfg.Recommend.LogoWidth))

	srv := newServer(serverDeps{
		Users:        stores.Users,
		Skills:       stores.Skills,
		Chats:        engine,
		Recommender:  recs,
		Presence:     registry,
		Auth:         jwtMgr,
		EventLimiter: eventLimiter,
		PageSize:     cfg.Recommend.PageSize,
	})
	health := registerService(grpcServer, srv)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	errCh := make(chan error, 2)
	go func() {
		log.Infof("gRPC server listening on %s", listenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- errors.Wrap(err, "gRPC server exit")
		}
	}()

	var httpServer *http.Server
	if cfg.Server.WSAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.Server.WSAddr,
			Handler:           newHTTPMux(newWSHandler(srv, jwtMgr, cfg.Server.AllowedOrigins)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Infof("WebSocket gateway listening on %s", cfg.Server.WSAddr)
			var err error
			if cfg.Server.TLSCert != "" {
				err = httpServer.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
			} else {
				err = httpServer.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				errCh <- errors.Wrap(err, "HTTP server exit")
			}
		}()
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err = <-errCh:
		log.Error(err)
	}

	log.Info("shutting down")
	health.SetServingStatus(v1.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	if httpServer != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(sctx)
	}
	grpcServer.GracefulStop()
	return err
}
