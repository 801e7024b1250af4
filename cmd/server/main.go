package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wirechat/gateway-go/internal/config"
	"github.com/wirechat/gateway-go/internal/database"
	"github.com/wirechat/gateway-go/internal/dispatch"
	"github.com/wirechat/gateway-go/internal/events"
	"github.com/wirechat/gateway-go/internal/gateway"
	"github.com/wirechat/gateway-go/internal/handler"
	"github.com/wirechat/gateway-go/internal/ingest"
	"github.com/wirechat/gateway-go/internal/jobs"
	"github.com/wirechat/gateway-go/internal/middleware"
	"github.com/wirechat/gateway-go/internal/redis"
	"github.com/wirechat/gateway-go/internal/repository"
	"github.com/wirechat/gateway-go/internal/status"
	"github.com/wirechat/gateway-go/internal/transport"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	publisher, err := dispatch.NewPublisher(cfg.AmqpURL, cfg.AmqpExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to amqp broker")
	}
	defer publisher.Close()
	log.Info().Str("exchange", cfg.AmqpExchange).Msg("amqp connected")

	orgRepo := repository.NewOrganizationRepository(db.DB)
	credRepo := repository.NewCredentialRepository(db.DB)
	customerRepo := repository.NewCustomerRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)
	msgRepo := repository.NewMessageRepository(db.DB)

	broker := events.NewBroker(redisClient)
	reporter := status.NewReporter(orgRepo, config.StatusReportTimeout)
	pipeline := ingest.NewPipeline(customerRepo, convRepo, msgRepo, publisher, config.DispatchTimeout)

	manager := gateway.NewManager(gateway.SessionDeps{
		Dialer:   transport.NewWSDialer(cfg.ChatNetworkURL),
		Creds:    gateway.NewEncryptingStore(credRepo, cfg.EncryptionKey),
		Status:   reporter,
		Notifier: broker,
		Ingestor: pipeline,
		Backoff: gateway.Backoff{
			Base:       config.ReconnectBaseDelay,
			Max:        config.ReconnectMaxDelay,
			MaxRetries: cfg.MaxReconnectAttempts,
		},
		DialTimeout:       config.SocketDialTimeout,
		SideEffectTimeout: config.DispatchTimeout,
	})

	authMiddleware := middleware.NewAuthMiddleware(orgRepo)
	sessionHandler := handler.NewSessionHandler(manager, broker)
	conversationHandler := handler.NewConversationHandler(convRepo, msgRepo, customerRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"activeSessions": manager.ActiveSessions(),
			"timestamp":      time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/conversations", conversationHandler.Routes())
		r.Get("/stats", conversationHandler.Stats)
		r.Mount("/", sessionHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(convRepo, config.IdleConversationTTL, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	manager.Shutdown()
	pipeline.Drain()

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
