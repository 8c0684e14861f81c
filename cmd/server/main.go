package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-hse-inspections/internal/auth"
	"github.com/pesio-ai/be-hse-inspections/internal/client"
	"github.com/pesio-ai/be-hse-inspections/internal/config"
	"github.com/pesio-ai/be-hse-inspections/internal/database"
	"github.com/pesio-ai/be-hse-inspections/internal/handler"
	"github.com/pesio-ai/be-hse-inspections/internal/logger"
	"github.com/pesio-ai/be-hse-inspections/internal/repository"
	"github.com/pesio-ai/be-hse-inspections/internal/repository/memstore"
	"github.com/pesio-ai/be-hse-inspections/internal/service"
)

// stores groups the persistence backends the services depend on.
type stores struct {
	targets   service.TargetStore
	history   service.HistoryStore
	audit     service.AuditStore
	directory service.DirectoryClientInterface
	close     func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("environment", cfg.Service.Environment).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting HSE Inspections Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := config.LoadRegistry(cfg.Workflow.CatalogueFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load stage catalogue")
	}
	log.Info().Int("stages", registry.Len()).Msg("Stage catalogue loaded")

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer st.close()

	// Notifications (optional)
	var notifier service.Notifier
	if cfg.NATS.URL != "" {
		nc, err := client.ConnectNATS(cfg.NATS.URL, cfg.Service.Name, log)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable; notifications disabled")
		} else {
			defer nc.Drain()
			notifier = client.NewNotificationPublisher(nc, cfg.NATS.SubjectPrefix, log.WithComponent("notifications"))
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS notifications enabled")
		}
	}

	// History stream (optional)
	var stream service.HistoryStream
	if len(cfg.Kafka.Brokers) > 0 {
		hs, err := client.NewHistoryStreamer(client.HistoryStreamConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, log.WithComponent("history-stream"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Kafka history stream")
		}
		defer hs.Close()
		stream = hs
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka history stream enabled")
	}

	// Initialize services
	pipelines := service.Pipelines{
		repository.KindFinding:    cfg.Workflow.FindingStages,
		repository.KindInspection: cfg.Workflow.InspectionStages,
	}
	targetService := service.NewTargetService(st.targets, st.history, st.audit, st.directory, notifier, registry, pipelines, log)
	workflowService := service.NewWorkflowService(st.targets, st.history, st.audit, st.directory, notifier, stream, registry, log)

	var verifierOpts []auth.Option
	if cfg.Auth.Issuer != "" {
		verifierOpts = append(verifierOpts, auth.WithIssuer(cfg.Auth.Issuer))
	}
	if cfg.Service.Environment == "development" {
		verifierOpts = append(verifierOpts, auth.WithDevHeaders())
	}
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, verifierOpts...)

	// HTTP server
	httpHandler := handler.NewHTTPHandler(targetService, workflowService, log)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewRouter(httpHandler, verifier, log, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.AuthInterceptor(verifier)))
	handler.RegisterWorkflowServer(grpcServer, handler.NewGRPCHandler(workflowService, log))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.WorkflowServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.GRPC.Port).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()

	log.Info().Msg("Server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		mem := memstore.New()
		return &stores{
			targets:   mem.Targets(),
			history:   mem.History(),
			audit:     mem.Audit(),
			directory: mem.Directory(),
			close:     func() {},
		}, nil
	}

	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Database connection established")

	return &stores{
		targets:   repository.NewTargetRepository(db),
		history:   repository.NewHistoryRepository(db),
		audit:     repository.NewAuditRepository(db),
		directory: repository.NewDirectoryRepository(db),
		close:     db.Close,
	}, nil
}
