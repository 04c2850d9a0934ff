// Command server wires the registry's dependencies and runs the HTTP server.
// Business logic lives in internal packages; main only assembles and
// supervises.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"civreg/internal/audit"
	"civreg/internal/certification"
	"civreg/internal/change"
	changehandler "civreg/internal/change/handler"
	changemetrics "civreg/internal/change/metrics"
	"civreg/internal/contract"
	contracthandler "civreg/internal/contract/handler"
	contractstore "civreg/internal/contract/store"
	"civreg/internal/contract/token"
	"civreg/internal/duplicate"
	identitystore "civreg/internal/identity/store"
	"civreg/internal/merge"
	"civreg/internal/pivot"
	"civreg/internal/platform/config"
	"civreg/internal/platform/httpserver"
	"civreg/internal/platform/logger"
	"civreg/internal/platform/metrics"
	"civreg/internal/platform/middleware"
	platformredis "civreg/internal/platform/redis"
	"civreg/internal/refdata"
	httptransport "civreg/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// tokenValidator adapts the token service to the middleware's interface.
type tokenValidator struct {
	tokens *token.Service
}

func (v tokenValidator) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	clientCode, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{ClientCode: clientCode}, nil
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: Postgres when configured, in-memory otherwise. The memory
	// adapters carry the stock reference data so a bare `go run` serves
	// meaningful decisions.
	var (
		identities interface {
			change.IdentityStore
			merge.SnapshotStore
			duplicate.CandidateSource
		}
		contracts interface {
			contract.ActiveResolver
			token.ContractSource
		}
		refStore interface {
			certification.Store
			refdata.RuleStore
		}
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		identities = identitystore.NewPostgres(pool)
		contracts = contractstore.NewPostgres(pool)
		refStore = refdata.NewPostgres(pool)
		log.Info("using postgres persistence")
	} else {
		identities = identitystore.NewInMemory()
		contracts = contractstore.NewInMemory()
		refStore = refdata.SeedDefaults()
		log.Warn("no database configured, using in-memory persistence")
	}

	registry, err := certification.NewRegistry(ctx, refStore, certification.WithLogger(log))
	if err != nil {
		return err
	}
	rules, err := refdata.NewRules(ctx, refStore, refdata.WithRulesLogger(log))
	if err != nil {
		return err
	}

	// Audit sink: Kafka when brokers are configured, in-process otherwise.
	var auditStore audit.Store
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return err
		}
		defer sink.Close()
		auditStore = sink
		log.Info("audit events published to kafka", "topic", cfg.AuditTopic)
	} else {
		auditStore = audit.NewInMemoryStore()
		log.Warn("no kafka brokers configured, audit events stay in process")
	}

	gate, err := contract.NewGate(contracts, contract.WithLogger(log))
	if err != nil {
		return err
	}
	validator, err := pivot.NewValidator(registry, pivot.WithLogger(log))
	if err != nil {
		return err
	}
	evaluator, err := duplicate.NewEvaluator(identities, registry, duplicate.WithLogger(log))
	if err != nil {
		return err
	}
	merger := merge.NewEngine(merge.WithLogger(log))

	engine, err := change.New(
		identities, gate, registry, rules, validator, evaluator, merger, identities,
		change.WithLogger(log),
		change.WithAuditPublisher(audit.NewPublisher(auditStore)),
		change.WithMetrics(changemetrics.New()),
	)
	if err != nil {
		return err
	}

	tokens, err := token.NewService(contracts, []byte(cfg.JWTSigningKey), cfg.TokenTTL)
	if err != nil {
		return err
	}

	router := httptransport.New(
		changehandler.New(engine, log),
		contracthandler.New(tokens, log),
		middleware.RequireClient(tokenValidator{tokens}, log),
		metrics.New(),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	// Reference data invalidation watcher, only when Redis is configured.
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		watcher := refdata.NewWatcher(redisClient.Client, cfg.RefdataChannel, log, registry, rules)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("watching reference data invalidations", "channel", cfg.RefdataChannel)
	}

	g.Go(func() error {
		log.Info("starting civreg server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return httpserver.Shutdown(srv, cfg.ShutdownTimeout)
	})

	return g.Wait()
}
