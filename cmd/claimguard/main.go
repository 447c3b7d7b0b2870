// Claimguard - Fraud-risk scoring for expense claims.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/opensource-finance/claimguard/internal/api"
	"github.com/opensource-finance/claimguard/internal/bus"
	"github.com/opensource-finance/claimguard/internal/cache"
	"github.com/opensource-finance/claimguard/internal/claims"
	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/identity"
	"github.com/opensource-finance/claimguard/internal/repository"
	"github.com/opensource-finance/claimguard/internal/rules"
	"github.com/opensource-finance/claimguard/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

type flags struct {
	tier         *string
	host         *string
	port         *int
	driver       *string
	sqlitePath   *string
	boltPath     *string
	pgHost       *string
	pgPort       *int
	pgUser       *string
	pgPassword   *string
	pgDB         *string
	pgSSLMode    *string
	cacheType    *string
	redisAddr    *string
	redisPass    *string
	busType      *string
	natsURL      *string
	natsToken    *string
	natsQueue    *string
	reviewers    *string
	callerHeader *string
	dupTimeoutMs *int
	asyncWorker  *bool
	debug        *bool
	showVersion  *bool

	// Scoring policy, bound directly to the stock thresholds.
	detection domain.DetectionConfig
}

// newFlags registers every claimguard flag on fs.
func newFlags(fs *ff.FlagSet) *flags {
	f := &flags{
		tier:         fs.StringLong("tier", "community", "Deployment tier: 'community' or 'pro'"),
		host:         fs.StringLong("host", "", "HTTP listen host (default from tier)"),
		port:         fs.IntLong("port", 0, "HTTP listen port (default from tier)"),
		driver:       fs.StringLong("db", "", "Storage driver: 'sqlite', 'postgres' or 'bolt'"),
		sqlitePath:   fs.StringLong("sqlite-path", "", "SQLite database file"),
		boltPath:     fs.StringLong("bolt-path", "", "BoltDB database file"),
		pgHost:       fs.StringLong("postgres-host", "", "PostgreSQL host"),
		pgPort:       fs.IntLong("postgres-port", 0, "PostgreSQL port"),
		pgUser:       fs.StringLong("postgres-user", "", "PostgreSQL user"),
		pgPassword:   fs.StringLong("postgres-password", "", "PostgreSQL password"),
		pgDB:         fs.StringLong("postgres-db", "", "PostgreSQL database"),
		pgSSLMode:    fs.StringLong("postgres-sslmode", "", "PostgreSQL sslmode"),
		cacheType:    fs.StringLong("cache", "", "Cache: 'memory', 'redis' or 'none'"),
		redisAddr:    fs.StringLong("redis-addr", "", "Redis address"),
		redisPass:    fs.StringLong("redis-password", "", "Redis password"),
		busType:      fs.StringLong("bus", "", "Event bus: 'channel' or 'nats'"),
		natsURL:      fs.StringLong("nats-url", "", "NATS server URL"),
		natsToken:    fs.StringLong("nats-token", "", "NATS auth token"),
		natsQueue:    fs.StringLong("nats-queue", "", "NATS queue group for the submission worker"),
		reviewers:    fs.StringLong("reviewers", "", "Comma-separated emails granted the hr role"),
		callerHeader: fs.StringLong("caller-header", "", "Header carrying the caller email from the auth gateway"),
		dupTimeoutMs: fs.IntLong("duplicate-timeout-ms", 0, "Duplicate lookup timeout in milliseconds"),
		asyncWorker:  fs.BoolLong("async-worker", "Consume submissions from the event bus"),
		debug:        fs.BoolLong("debug", "Enable debug logging"),
		showVersion:  fs.BoolLong("version", "Show version information"),
		detection:    domain.DefaultDetectionConfig(),
	}

	d := &f.detection
	fs.Float64Var(&d.Amount.RoundUnit, 0, "round-unit", d.Amount.RoundUnit, "Multiple an amount must be of to count as round")
	fs.Float64Var(&d.Amount.RoundMinimum, 0, "round-minimum", d.Amount.RoundMinimum, "Round amounts above this are suspicious")
	fs.Float64Var(&d.Amount.RoundConfidence, 0, "round-confidence", d.Amount.RoundConfidence, "Confidence of the round amount indicator")
	fs.Float64Var(&d.Amount.HighAmountCeiling, 0, "high-amount-ceiling", d.Amount.HighAmountCeiling, "Amounts above this are unusual")
	fs.Float64Var(&d.Amount.HighAmountConfidence, 0, "high-amount-confidence", d.Amount.HighAmountConfidence, "Confidence of the unusual amount indicator")
	fs.Float64Var(&d.Amount.SmallAmountFloor, 0, "small-amount-floor", d.Amount.SmallAmountFloor, "Amounts below this are unusually small")
	fs.Float64Var(&d.Amount.SmallAmountConfidence, 0, "small-amount-confidence", d.Amount.SmallAmountConfidence, "Confidence of the small amount indicator")
	fs.Float64Var(&d.Date.FutureConfidence, 0, "future-date-confidence", d.Date.FutureConfidence, "Confidence of the future receipt date indicator")
	fs.IntVar(&d.Date.MaxAgeDays, 0, "max-receipt-age-days", d.Date.MaxAgeDays, "Receipts older than this many days are stale")
	fs.Float64Var(&d.Date.StaleConfidence, 0, "stale-date-confidence", d.Date.StaleConfidence, "Confidence of the stale receipt date indicator")
	fs.Float64Var(&d.Duplicate.WindowDays, 0, "duplicate-window-days", d.Duplicate.WindowDays, "Receipt dates this close count as duplicates")
	fs.Float64Var(&d.Duplicate.SimilarityScore, 0, "duplicate-similarity", d.Duplicate.SimilarityScore, "Similarity reported for a duplicate match")
	fs.Float64Var(&d.Weights.Low, 0, "weight-low", d.Weights.Low, "Score penalty weight of low severity indicators")
	fs.Float64Var(&d.Weights.Medium, 0, "weight-medium", d.Weights.Medium, "Score penalty weight of medium severity indicators")
	fs.Float64Var(&d.Weights.High, 0, "weight-high", d.Weights.High, "Score penalty weight of high severity indicators")

	return f
}

func main() {
	fs := ff.NewFlagSet("claimguard")
	f := newFlags(fs)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CLAIMGUARD"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *f.showVersion {
		fmt.Println(Version)
		os.Exit(0)
	}

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if *f.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting claimguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg, err := buildConfig(f)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"reviewers", len(cfg.Identity.Reviewers),
	)

	if err := run(cfg, *f.asyncWorker); err != nil {
		slog.Error("claimguard failed", "error", err)
		os.Exit(1)
	}
}

// buildConfig starts from the tier defaults and applies the flags that
// were set.
func buildConfig(f *flags) (*domain.Config, error) {
	var cfg *domain.Config
	switch domain.Tier(*f.tier) {
	case domain.TierCommunity:
		cfg = domain.DefaultConfig()
	case domain.TierPro:
		cfg = domain.ProConfig()
	default:
		return nil, fmt.Errorf("unknown tier %q", *f.tier)
	}

	setString(&cfg.Server.Host, *f.host)
	setInt(&cfg.Server.Port, *f.port)

	setString(&cfg.Repository.Driver, *f.driver)
	setString(&cfg.Repository.SQLitePath, *f.sqlitePath)
	setString(&cfg.Repository.BoltPath, *f.boltPath)
	setString(&cfg.Repository.PostgresHost, *f.pgHost)
	setInt(&cfg.Repository.PostgresPort, *f.pgPort)
	setString(&cfg.Repository.PostgresUser, *f.pgUser)
	setString(&cfg.Repository.PostgresPassword, *f.pgPassword)
	setString(&cfg.Repository.PostgresDB, *f.pgDB)
	setString(&cfg.Repository.PostgresSSLMode, *f.pgSSLMode)

	setString(&cfg.Cache.Type, *f.cacheType)
	setString(&cfg.Cache.RedisAddr, *f.redisAddr)
	setString(&cfg.Cache.RedisPassword, *f.redisPass)

	setString(&cfg.EventBus.Type, *f.busType)
	setString(&cfg.EventBus.NATSUrl, *f.natsURL)
	setString(&cfg.EventBus.NATSToken, *f.natsToken)
	setString(&cfg.EventBus.NATSQueueGroup, *f.natsQueue)

	setString(&cfg.Identity.CallerHeader, *f.callerHeader)
	for _, r := range strings.Split(*f.reviewers, ",") {
		if r = strings.TrimSpace(r); r != "" {
			cfg.Identity.Reviewers = append(cfg.Identity.Reviewers, r)
		}
	}

	cfg.Detection = f.detection
	if *f.dupTimeoutMs > 0 {
		cfg.Detection.Duplicate.Timeout = time.Duration(*f.dupTimeoutMs) * time.Millisecond
	}
	if err := cfg.Detection.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func run(cfg *domain.Config, forceWorker bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize custom rule engine
	engine, err := rules.NewEngine(100)
	if err != nil {
		return fmt.Errorf("initialize rule engine: %w", err)
	}
	defer engine.Close()

	if err := loadRulesFromRepository(ctx, repo, engine); err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	svc := claims.NewService(repo, cfg.Detection,
		claims.WithCache(cacheImpl, cfg.Cache.ClaimTTL),
		claims.WithEventBus(busImpl),
		claims.WithRules(engine),
	)

	ids := identity.NewGatewayProvider(cfg.Identity)
	if len(cfg.Identity.Reviewers) == 0 {
		slog.Warn("no reviewers configured; nobody can review claims or manage rules")
	}

	// Initialize async worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || forceWorker {
		asyncWorker = worker.NewWorker(busImpl, svc)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		}
	}

	srv := api.NewServer(cfg.Server, svc, repo, cacheImpl, busImpl, engine, ids, Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("claimguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"caller_header", ids.Header(),
	)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("claimguard shutdown complete")
	return nil
}

// loadRulesFromRepository loads stored custom rules into the engine. A
// failing listing starts the engine empty; rules can be reloaded later.
func loadRulesFromRepository(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	stored, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from repository", "error", err)
		return nil
	}

	if len(stored) == 0 {
		slog.Info("no custom rules stored - configure via POST /rules")
		return nil
	}

	slog.Info("loading rules from repository", "count", len(stored))
	return engine.LoadRules(stored)
}
