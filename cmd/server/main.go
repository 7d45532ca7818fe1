package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/health"

	"market-auth/backend/internal/audit"
	auditrepo "market-auth/backend/internal/audit/repository"
	"market-auth/backend/internal/config"
	"market-auth/backend/internal/db"
	"market-auth/backend/internal/devmail"
	healthhandler "market-auth/backend/internal/health/handler"
	identityhandler "market-auth/backend/internal/identity/handler"
	identityservice "market-auth/backend/internal/identity/service"
	"market-auth/backend/internal/mail"
	"market-auth/backend/internal/policy/engine"
	"market-auth/backend/internal/security"
	"market-auth/backend/internal/server"
	"market-auth/backend/internal/server/interceptors"
	sessionservice "market-auth/backend/internal/session/service"
	singleuserepo "market-auth/backend/internal/singleuse/repository"
	singleuseservice "market-auth/backend/internal/singleuse/service"
	"market-auth/backend/internal/telemetry"
	telemetryotel "market-auth/backend/internal/telemetry/otel"
	"market-auth/backend/internal/telemetry/producer"
	userrepo "market-auth/backend/internal/user/repository"
)

const healthSyncInterval = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal("config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, telemetryotel.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		fatal("otel", err)
	}
	providers.SetGlobal()

	tokens, err := security.NewTokenProviderFromConfig(security.SigningConfig{
		Secret:     cfg.JWTSecret,
		PrivateKey: cfg.JWTPrivateKey,
		PublicKey:  cfg.JWTPublicKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTTL(),
	})
	if err != nil {
		fatal("token provider", err)
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	var database *sql.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal("database", err)
		}
		defer database.Close()
	} else if cfg.TokenStore != config.TokenStoreMemory {
		fatal("database", db.ErrEmptyDSN)
	}

	pingers := map[string]healthhandler.Pinger{}
	var users userrepo.Repository
	if database != nil {
		users = userrepo.NewPostgresRepository(database)
		pingers["postgres"] = database
	} else {
		logger.Warn("DATABASE_URL not set; users are kept in memory")
		users = userrepo.NewMemoryRepository()
	}

	var tokenRepo singleuserepo.Repository
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fatal("redis", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		tokenRepo = singleuserepo.NewRedisRepository(client, "")
		pingers["redis"] = healthhandler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	case config.TokenStorePostgres:
		tokenRepo = singleuserepo.NewPostgresRepository(database)
	default:
		tokenRepo = singleuserepo.NewMemoryRepository()
	}
	store := singleuseservice.NewStore(tokenRepo, hasher, cfg.VerificationTTL(), cfg.ResetTTL())
	issuer := sessionservice.NewIssuer(tokens, users, logger)

	senders := mail.Senders{Verification: cfg.MailFromVerification, Security: cfg.MailFromSecurity}
	var mailer mail.Sender
	var devMail *devmail.Handler
	if cfg.MailAPIURL != "" {
		mailer = mail.NewHTTPSender(cfg.MailAPIURL, cfg.MailAPIToken, senders)
	} else {
		logger.Warn("MAIL_API_URL not set; mail is kept in the in-process outbox (GET /dev/mail)")
		outbox := mail.NewOutbox(senders, logger)
		mailer = outbox
		devMail = devmail.NewHandler(outbox)
	}

	authSvc := identityservice.NewAuthService(users, store, issuer, hasher, mailer, identityservice.Config{
		VerificationLink:  cfg.VerificationLink,
		PasswordResetLink: cfg.PasswordResetLink,
	}, logger)

	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic)
	events := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider), kafkaProducer}
	var auditLogger audit.AuditLogger
	if database != nil {
		auditLogger = audit.NewLogger(auditrepo.NewPostgresRepository(database), interceptors.ClientIPFromContext, logger)
	}
	authSvc.SetEventSinks(auditLogger, events, interceptors.ClientIPFromContext)

	policy, err := engine.NewOPAEvaluator(ctx, cfg.VerifiedOnlyRouteList(), "")
	if err != nil {
		fatal("policy", err)
	}

	checker := healthhandler.NewChecker(pingers, policy)
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewRouter(server.Deps{
			Auth:               identityhandler.NewAuthHandler(authSvc, issuer, users, policy),
			Health:             checker,
			DevMail:            devMail,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			Logger:             logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("http serve", err)
		}
	}()

	var healthSrv *health.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			fatal("grpc listen", err)
		}
		healthSrv = health.NewServer()
		grpcSrv := server.NewGRPCServer(healthSrv)
		go checker.Sync(ctx, healthSrv, healthSyncInterval)
		go func() {
			logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("grpc serve", "error", err)
			}
		}()
		defer grpcSrv.GracefulStop()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Let in-flight async event emits finish before closing their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		logger.Warn("kafka producer close", "error", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
