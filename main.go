package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"project-chat/internal/auth"
	"project-chat/internal/cache"
	"project-chat/internal/config"
	"project-chat/internal/db"
	grpcclient "project-chat/internal/grpc"
	"project-chat/internal/handlers"
	"project-chat/internal/membership"
	"project-chat/internal/middleware"
	"project-chat/internal/observability"
	"project-chat/internal/rabbitmq"
	"project-chat/internal/repositories"
	"project-chat/internal/telemetry"
	"project-chat/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	database, err := db.Connect(ctx, cfg.DBDSN, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	facts := cache.New(cache.WithRecorder(observability.Recorder{}))
	defer facts.Clear()

	validator, users, closeClients, err := buildIdentitySources(cfg, database)
	if err != nil {
		return err
	}
	defer closeClients()

	verifier := auth.NewVerifier(validator, users, facts, cfg.IdentityCacheTTL)
	oracle := membership.NewOracle(repositories.NewMembershipRepo(database), facts, cfg.MembershipCacheTTL,
		logger.With("component", "membership"), observability.Recorder{})
	messages := repositories.NewMessageRepo(database)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger.With("component", "rabbitmq"))
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger.With("component", "audit"))

	startMembershipConsumer(ctx, cfg, oracle, logger)

	hub := ws.NewHub(logger.With("component", "hub"))
	chat := ws.NewService(hub, oracle, messages, audit, logger.With("component", "session"), cfg.WS())
	wsHandler := ws.NewHandler(chat, publisher, logger.With("component", "ws"))
	history := handlers.NewHistoryHandler(oracle, messages, users, audit)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier, logger.With("component", "auth"))

	router.GET("/healthz", handlers.Health(database))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", authMiddleware, wsHandler.Handle)
	router.GET("/rooms/:room_id/messages", authMiddleware, history.ListMessages)
	handlers.RegisterDebugRoutes(router, audit, hub, cfg.DebugRoutes)

	srv := &http.Server{Addr: cfg.Addr(), Handler: router}
	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			"addr", cfg.Addr(),
			"auth_mode", cfg.AuthMode,
			"publisher", rabbitmq.PublisherMode(publisher),
			"publisher_noop_reason", rabbitmq.PublisherNoopReason(publisher))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errChan:
		return err
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(sctx)
	// srv.Shutdown leaves hijacked websocket connections open.
	logger.Info("closed websocket sessions", "sessions", chat.CloseAll())
	if shutdownErr != nil {
		return fmt.Errorf("http shutdown: %w", shutdownErr)
	}
	logger.Info("stopped cleanly")
	return nil
}

// buildIdentitySources picks the credential validator and the identity store.
// The returned func closes any gRPC connection opened here.
func buildIdentitySources(cfg config.Config, database *sqlx.DB) (auth.TokenValidator, repositories.IdentityStore, func(), error) {
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var validator auth.TokenValidator = auth.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer)
	if cfg.AuthMode == config.AuthModeGRPC {
		conn, err := grpcclient.Dial(cfg.AuthGRPCAddr)
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("dial auth service: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		validator = grpcclient.NewAuthClient(conn)
	}

	var users repositories.IdentityStore = repositories.NewUserRepo(database)
	if cfg.UserGRPCAddr != "" {
		conn, err := grpcclient.Dial(cfg.UserGRPCAddr)
		if err != nil {
			closeAll()
			return nil, nil, func() {}, fmt.Errorf("dial user service: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		users = grpcclient.NewUserClient(conn)
	}

	return validator, users, closeAll, nil
}

func startMembershipConsumer(ctx context.Context, cfg config.Config, oracle *membership.Oracle, logger *slog.Logger) {
	if cfg.AMQPURL == "" {
		logger.Info("membership invalidation disabled, relying on cache ttl")
		return
	}
	consumer, err := rabbitmq.NewMembershipConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.MembershipQueue,
		cfg.MembershipRoutingKey, logger.With("component", "membership-consumer"))
	if err != nil {
		logger.Warn("membership invalidation disabled, relying on cache ttl", "error", err)
		return
	}
	go func() {
		defer consumer.Close()
		if err := consumer.Run(ctx, oracle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("membership consumer stopped", "error", err)
		}
	}()
}
