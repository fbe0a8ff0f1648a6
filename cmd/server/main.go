// Command server runs the consent management service: registration/login,
// the consent ledger with signed artifacts, grievance tickets, and the
// privacy-awareness quiz.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"covenant/internal/auditlog"
	"covenant/internal/certificate"
	consenthandler "covenant/internal/consent/handler"
	consentmodels "covenant/internal/consent/models"
	consentservice "covenant/internal/consent/service"
	consentstore "covenant/internal/consent/store"
	"covenant/internal/grievance"
	"covenant/internal/platform/config"
	"covenant/internal/platform/database"
	"covenant/internal/platform/httpserver"
	"covenant/internal/platform/kafka/producer"
	"covenant/internal/platform/logger"
	"covenant/internal/platform/metrics"
	"covenant/internal/platform/redis"
	sessionhandler "covenant/internal/session/handler"
	sessionservice "covenant/internal/session/service"
	sessionstore "covenant/internal/session/store"
	"covenant/internal/session/token"
	"covenant/internal/signer"
	httptransport "covenant/internal/transport/http"
	"covenant/pkg/secrets"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Artifact signer. Mock is the default; ed25519 needs a key seed.
	var artifactSigner signer.Signer
	switch cfg.SignerMode {
	case "ed25519":
		seed := cfg.SignerKeySeed
		if seed == "" {
			// Ephemeral key: artifacts signed before a restart will not verify after it.
			generated, err := secrets.Generate()
			if err != nil {
				log.Error("failed to generate signer seed", "error", err)
				os.Exit(1)
			}
			seed = generated
			log.Warn("SIGNER_KEY_SEED not set, using an ephemeral key for this process")
		}
		s, err := signer.NewEd25519(cfg.SignerKeyID, seed, signer.WithValidity(cfg.ConsentValidity))
		if err != nil {
			log.Error("failed to build ed25519 signer", "error", err)
			os.Exit(1)
		}
		artifactSigner = s
	default:
		artifactSigner = signer.NewMock(cfg.SignerKeyID, signer.WithValidity(cfg.ConsentValidity))
	}

	// Storage: Postgres when configured, otherwise in-memory with optional
	// snapshot persistence.
	pool, err := database.New(database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var store consentservice.Store
	var auditStore auditlog.Store
	if pool != nil {
		pgConsents := consentstore.NewPostgresStore(pool.DB())
		pgAudit := auditlog.NewPostgresStore(pool.DB())
		if err := pgConsents.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure consent schema", "error", err)
			os.Exit(1)
		}
		if err := pgAudit.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure consent log schema", "error", err)
			os.Exit(1)
		}
		store = pgConsents
		auditStore = pgAudit
	} else if cfg.SnapshotPath != "" {
		snapshot := consentstore.NewSnapshotStore(consentstore.NewInMemoryStore(), cfg.SnapshotPath, log)
		snapshot.OnWriteFailure = func() { m.SnapshotFailures.Inc() }
		snapshot.Load(ctx)
		store = snapshot
		auditStore = auditlog.NewInMemoryStore()
	} else {
		store = consentstore.NewInMemoryStore()
		auditStore = auditlog.NewInMemoryStore()
	}

	// Kafka sink for the consent trail, when brokers are configured.
	publisherOpts := []auditlog.PublisherOption{
		auditlog.WithPublisherLogger(log),
		auditlog.WithAsyncBuffer(256),
	}
	var kafkaProducer *producer.Producer
	if cfg.KafkaBrokers != "" {
		kafkaCfg := producer.DefaultConfig()
		kafkaCfg.Brokers = cfg.KafkaBrokers
		p, err := producer.New(kafkaCfg, log)
		if err != nil {
			log.Error("failed to build kafka producer", "error", err)
			os.Exit(1)
		}
		kafkaProducer = p
		publisherOpts = append(publisherOpts, auditlog.WithSink(auditlog.NewKafkaSink(kafkaProducer, cfg.KafkaTopic)))
	}
	logs := auditlog.NewPublisher(auditStore, publisherOpts...)

	// Sessions: Redis when configured.
	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	var sessions sessionstore.SessionStore
	if redisClient != nil {
		sessions = sessionstore.NewRedisSessionStore(redisClient.Client)
	} else {
		sessions = sessionstore.NewInMemorySessionStore()
	}

	ledger := consentservice.NewService(store, artifactSigner, logs, log, consentmodels.DefaultCatalog(),
		consentservice.WithValidity(cfg.ConsentValidity),
		consentservice.WithMetrics(m),
	)

	tokens := token.NewService(cfg.JWTSigningKey, "covenant")
	// Principals stay in memory regardless of DATABASE_URL: auth is a mocked
	// collaborator here, and accounts are meant to be ephemeral.
	accounts := sessionservice.NewService(
		sessionstore.NewInMemoryPrincipalStore(),
		sessions,
		tokens,
		ledger,
		log,
		sessionservice.WithTokenTTL(cfg.TokenTTL),
		sessionservice.WithMetrics(m),
	)

	grievances := grievance.NewService(grievance.NewInMemoryStore(), log, grievance.WithMetrics(m))
	certificates := certificate.NewService(certificate.NewInMemoryStore(), log, certificate.WithMetrics(m))

	healthChecks := map[string]httptransport.Health{}
	if pool != nil {
		healthChecks["database"] = func() error { return pool.Health(context.Background()) }
	}
	if redisClient != nil {
		healthChecks["redis"] = func() error { return redisClient.Health(context.Background()) }
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Consents:     consenthandler.New(ledger, log),
		Sessions:     sessionhandler.New(accounts, log),
		Grievances:   grievance.NewHandler(grievances, log),
		Certificates: certificate.NewHandler(certificates, log),
		Validator:    token.NewValidatorAdapter(tokens, sessions),
		Logger:       log,
		Metrics:      m,
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting covenant server", "addr", cfg.Addr, "signer_mode", cfg.SignerMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	// Drain buffered log entries and close backing resources.
	logs.Close()
	if kafkaProducer != nil {
		kafkaProducer.Close()
	}
	if redisClient != nil {
		redisClient.Close() //nolint:errcheck // shutting down
	}
	if pool != nil {
		pool.Close() //nolint:errcheck // shutting down
	}
	log.Info("server stopped")
}
