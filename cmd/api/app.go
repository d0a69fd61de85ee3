package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"payment-call-system/internal/audit"
	"payment-call-system/internal/auth"
	"payment-call-system/internal/calls"
	"payment-call-system/internal/config"
	"payment-call-system/internal/events"
	"payment-call-system/internal/funding"
	"payment-call-system/internal/httpapi"
	"payment-call-system/internal/migrations"
	"payment-call-system/internal/payments"
	"payment-call-system/internal/pricing"
	"payment-call-system/internal/reporting"
	"payment-call-system/internal/users"
	"payment-call-system/internal/wallet"
	"payment-call-system/pkg/utils"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// app holds the wired process dependencies.
type app struct {
	cfg  config.Config
	log  *slog.Logger
	auth *auth.Manager

	db  *sqlx.DB
	rdb *redis.Client

	handlers httpapi.Handlers
	funding  *funding.Orchestrator

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "err", err)
		}
	}
}

// ready reports whether backing stores answer.
func (a *app) ready(ctx context.Context) error {
	if a.db != nil {
		if err := utils.HealthCheck(ctx, a.db, 2*time.Second); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

type stores struct {
	users   users.Repository
	wallets wallet.Store
	calls   calls.Store
	audit   audit.Repository
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	a.auth, err = auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	ledger := wallet.NewService(st.wallets, cfg.Billing.Currency, cfg.Ledger.MaxRetries)
	if cfg.KafkaEnabled() {
		w, err := utils.OpenKafkaWriter(utils.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		pub := events.NewKafkaPublisher(w, log.With("component", "ledger-events"))
		a.closers = append(a.closers, pub.Close)
		ledger.SetPublisher(pub)
	}

	auditSvc := audit.NewService(st.audit)

	verifier, err := newVerifier(cfg)
	if err != nil {
		return nil, err
	}
	a.funding = funding.NewOrchestrator(ledger, payments.NewMonnifyProvider(cfg.Monnify), verifier, cfg.Monnify.IntentTTL)
	a.funding.SetAuditor(auditSvc)

	plan := pricing.DefaultPlan()
	rates := pricing.NewMemoryRepo(pricing.Rate{
		ID:                 "default",
		Currency:           cfg.Billing.Currency,
		RatePerMinuteMinor: cfg.Billing.DefaultCostPerMinuteMinor,
		Status:             pricing.RateStatusActive,
	})

	callSvc := calls.NewService(st.calls, ledger, plan)
	callSvc.SetAuditor(auditSvc)
	if a.rdb != nil && cfg.Billing.MaxConcurrentCalls > 0 {
		callSvc.SetLimiter(calls.NewRedisLimiter(a.rdb, cfg.Billing.MaxConcurrentCalls, cfg.Billing.MaxCallDuration))
	}

	a.handlers = httpapi.Handlers{
		Auth:        a.auth,
		Users:       users.NewService(st.users),
		AdminEmails: cfg.Auth.AdminEmails,
		Wallet:      ledger,
		Funding:     a.funding,
		Calls:       callSvc,
		Pricing:     pricing.NewService(rates, plan, cfg.Billing.Currency),
		Reporting:   reporting.NewService(ledger, callSvc),
		Audit:       auditSvc,
	}

	ok = true
	return a, nil
}

func (a *app) openStores(ctx context.Context) (stores, error) {
	cfg := a.cfg

	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return stores{}, fmt.Errorf("redis: %w", err)
		}
		a.rdb = rdb
		a.closers = append(a.closers, rdb.Close)
	}

	if !cfg.UsesPostgres() {
		a.log.Warn("using in-memory stores; data is lost on restart")
		return stores{
			users:   users.NewMemoryRepo(),
			wallets: wallet.NewMemoryStore(),
			calls:   calls.NewMemoryStore(),
			audit:   audit.NewMemoryRepo(),
		}, nil
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return stores{}, fmt.Errorf("postgres: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if cfg.DB.AutoMigrate {
		applied, err := migrations.Apply(ctx, db)
		if err != nil {
			return stores{}, fmt.Errorf("migrations: %w", err)
		}
		if len(applied) > 0 {
			a.log.Info("migrations applied", "versions", applied)
		}
	}

	return stores{
		users:   users.NewPostgresRepo(db),
		wallets: wallet.NewPostgresStore(db),
		calls:   calls.NewPostgresStore(db),
		audit:   audit.NewPostgresRepo(db),
	}, nil
}

// newVerifier refuses to run unauthenticated webhooks in production.
func newVerifier(cfg config.Config) (payments.Verifier, error) {
	if cfg.Monnify.SecretKey != "" {
		return payments.NewHMACVerifier(cfg.Monnify.SecretKey)
	}
	if cfg.IsProduction() {
		return nil, errors.New("MONNIFY_SECRET_KEY is required in production")
	}
	return payments.AcceptAllVerifier{}, nil
}
