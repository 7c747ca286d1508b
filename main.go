package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/clickhouse"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/confetti"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/config"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/dal"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
	grpcserver "github.com/Billy-Davies-2/lottery-draft-ui/internal/grpc"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/handlers"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/lottery"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/mocks"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/pubsub"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/recorder"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/session"
)

const shutdownTimeout = 10 * time.Second

// analytics is ClickHouse in production and the in-memory mock in development.
type analytics interface {
	RecordPick(ctx context.Context, p models.PickRecord) error
	TeamStats(ctx context.Context) ([]models.TeamStat, error)
	Ping(ctx context.Context) error
	Close() error
}

// upstream is the NATS bus: embedded in development, a real server in production.
type upstream interface {
	pubsub.Upstream
	pubsub.Durable
	Connected() bool
	Close()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger first
	logger.Init(cfg.LogLevel)
	logger.Info("Starting lottery draft UI", "environment", cfg.Environment, "lottery_api", cfg.LotteryAPIURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event bus (embedded NATS for local development, NATS JetStream in production)
	var bus upstream
	if cfg.IsDevelopment() {
		logger.Info("Starting embedded NATS server for local development")
		opts := pubsub.DefaultEmbeddedNATSOptions()
		opts.Subject = cfg.NATSSubject
		embedded, err := pubsub.NewEmbeddedNATSPubSub(opts)
		if err != nil {
			logger.Error("Failed to initialize embedded NATS", "error", err)
			log.Fatalf("Failed to initialize embedded NATS: %v", err)
		}
		bus = embedded
		logger.Info("Embedded NATS server ready", "url", embedded.GetServerURL())
	} else if cfg.NATSURL != "" {
		logger.Info("Using NATS JetStream", "url", cfg.NATSURL)
		natsBus, err := pubsub.NewNATSPubSub(cfg.NATSURL, pubsub.StreamOptions{Subject: cfg.NATSSubject})
		if err != nil {
			logger.Error("Failed to initialize NATS", "error", err)
			log.Fatalf("Failed to initialize NATS: %v", err)
		}
		bus = natsBus
	} else {
		logger.Warn("NATS_URL not set, draft events stay in this process")
	}

	shared := pubsub.New()
	var durable pubsub.Durable
	if bus != nil {
		shared = pubsub.NewWithUpstream(bus)
		durable = bus
	}

	// Journal
	journal, err := dal.Open(cfg.DBDriver, cfg.SQLiteFile, cfg.DatabaseURL, cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to initialize journal", "error", err, "driver", cfg.DBDriver)
		log.Fatalf("Failed to initialize journal: %v", err)
	}
	logger.Info("Journal ready", "driver", cfg.DBDriver)

	// Pick analytics (ClickHouse, or the mock in development)
	var stats analytics
	if cfg.IsDevelopment() {
		logger.Info("Using mock ClickHouse for local development (no ClickHouse server required)")
		stats = mocks.NewMockClickHouseClient()
	} else {
		ch, err := clickhouse.NewClient(cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePassword)
		if err != nil {
			logger.Error("Failed to initialize ClickHouse", "error", err, "address", cfg.ClickHouseAddr)
			log.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		stats = ch
		logger.Info("Connected to ClickHouse", "address", cfg.ClickHouseAddr, "database", cfg.ClickHouseDB)
	}

	api := lottery.NewClient(cfg.LotteryAPIURL, cfg.LotteryAPITimeout())
	store := session.NewStore(session.Options{
		API:         api,
		Delay:       draftview.DelayRange{Min: cfg.DramaDelayMin(), Max: cfg.DramaDelayMax()},
		Confetti:    confetti.Config{Pieces: cfg.ConfettiPieces},
		IdleTimeout: cfg.ViewIdleTimeout(),
		Shared:      shared,
	})
	go store.Run(ctx)

	rec := recorder.New(journal, stats)
	stopRecorder, err := rec.Start(ctx, shared, durable)
	if err != nil {
		logger.Error("Failed to start recorder", "error", err)
		log.Fatalf("Failed to start recorder: %v", err)
	}

	checks := []handlers.HealthCheck{
		{Name: "lottery_api", Critical: true, Check: api.Health},
		{Name: "journal", Critical: true, Check: journal.Ping},
		{Name: "clickhouse", Check: stats.Ping},
	}
	if bus != nil {
		checks = append(checks, handlers.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !bus.Connected() {
				return errors.New("not connected")
			}
			return nil
		}})
	}

	h, err := handlers.New(handlers.Options{
		Store:   store,
		Journal: journal,
		Stats:   stats,
		Checks:  checks,
	})
	if err != nil {
		logger.Error("Failed to parse templates", "error", err)
		log.Fatalf("Failed to parse templates: %v", err)
	}

	// gRPC server
	grpcServer := grpc.NewServer()
	grpcserver.NewServer(store).Register(grpcServer)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		addr := "0.0.0.0:" + cfg.GRPCPort
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Failed to listen for gRPC", "error", err, "port", cfg.GRPCPort)
			log.Fatalf("Failed to listen for gRPC: %v", err)
		}
		logger.Info("gRPC server starting", "address", addr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("Failed to serve gRPC", "error", err)
		}
	}()

	// HTTP server. No WriteTimeout: /events is long-lived.
	addr := "0.0.0.0:" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		logger.Info("Server starting", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start", "error", err)
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// views first, so open event streams see their sessions go away
	store.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown did not complete", "error", err)
	}
	grpcServer.GracefulStop()

	stopRecorder()
	if bus != nil {
		bus.Close()
	}
	if err := stats.Close(); err != nil {
		logger.Warn("Failed to close analytics", "error", err)
	}
	if err := journal.Close(); err != nil {
		logger.Warn("Failed to close journal", "error", err)
	}
	logger.Info("Shutdown complete")
}
