package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"mindwell/internal/audit"
	identityjwt "mindwell/internal/identity/jwt"
	identityservice "mindwell/internal/identity/service"
	identitystore "mindwell/internal/identity/store"
	"mindwell/internal/insight"
	"mindwell/internal/platform/config"
	"mindwell/internal/platform/fieldcrypt"
	"mindwell/internal/platform/httpserver"
	"mindwell/internal/platform/logger"
	"mindwell/internal/platform/metrics"
	platformredis "mindwell/internal/platform/redis"
	recordsservice "mindwell/internal/records/service"
	recordsstore "mindwell/internal/records/store"
	"mindwell/internal/records/view"
	sharingservice "mindwell/internal/sharing/service"
	sharingstore "mindwell/internal/sharing/store"
	httptransport "mindwell/internal/transport/http"
)

// main wires dependencies and owns process lifecycle. Business rules live in
// the internal services; nothing here makes a domain decision.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	cipher, err := fieldcrypt.New(cfg.FieldEncryptionSecret)
	if err != nil {
		return err
	}

	// Stores. Without a database URL everything runs on the in-memory
	// implementations, which is the local development mode.
	var (
		identities    identitystore.IdentityStore
		refreshTokens identitystore.RefreshTokenStore
		connections   sharingstore.ConnectionStore
		recordStore   recordsstore.Store
		auditStore    audit.Store
		health        func() error
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		identities = identitystore.NewPostgresIdentityStore(db)
		refreshTokens = identitystore.NewPostgresRefreshTokenStore(db)
		connections = sharingstore.NewPostgresConnectionStore(db)
		recordStore = recordsstore.NewPostgresStore(pool)
		auditStore = audit.NewPostgresStore(db)
		health = db.Ping
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		identities = identitystore.NewInMemoryIdentityStore()
		refreshTokens = identitystore.NewInMemoryRefreshTokenStore()
		connections = sharingstore.NewInMemoryConnectionStore()
		recordStore = recordsstore.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: non-blocking recorder, single drain worker, optional
	// Kafka mirror.
	recorder := audit.NewRecorder(1024,
		audit.WithLogger(log),
		audit.WithDroppedCounter(m.AuditDropped),
	)
	workerOpts := []audit.WorkerOption{
		audit.WithWorkerLogger(log),
		audit.WithWorkerDroppedCounter(m.AuditDropped),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		workerOpts = append(workerOpts, audit.WithPublisher(publisher))
	}
	worker := audit.NewWorker(auditStore, recorder.Inbox(), workerOpts...)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	tokens := identityjwt.NewService(cfg.AccessTokenSecret, "mindwell")
	identitySvc, err := identityservice.New(identities, refreshTokens, tokens, cfg.RefreshTokenSecret,
		identityservice.WithLogger(log),
		identityservice.WithAudit(recorder),
		identityservice.WithMetrics(m),
		identityservice.WithTokenTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		identityservice.WithLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutWindow),
		identityservice.WithDoctorAutoVerify(cfg.DoctorAutoVerify),
	)
	if err != nil {
		return err
	}

	insightClient := insight.New(cfg.InsightURL,
		insight.WithLogger(log),
		insight.WithMetrics(m),
		insight.WithTimeout(cfg.InsightTimeout),
	)

	assembler := view.NewAssembler(recordStore,
		view.WithLogger(log),
		view.WithMetrics(m),
	)

	sharingSvc, err := sharingservice.New(connections, identities, assembler, cipher, cfg.ShareCodeSecret,
		sharingservice.WithLogger(log),
		sharingservice.WithAudit(recorder),
		sharingservice.WithMetrics(m),
		sharingservice.WithDoctorNameCache(sharingservice.NewDoctorNameCache(redisClient, log)),
	)
	if err != nil {
		return err
	}

	recordsSvc := recordsservice.New(recordStore, cipher, insightClient,
		recordsservice.WithLogger(log),
		recordsservice.WithAudit(recorder),
	)

	router := httptransport.NewRouter(
		httptransport.NewAuthHandler(identitySvc),
		httptransport.NewDoctorHandler(sharingSvc),
		httptransport.NewRecordsHandler(recordsSvc),
		identitySvc,
		log,
		health,
	)

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting mindwell server", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
