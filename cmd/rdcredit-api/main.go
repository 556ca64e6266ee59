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

	"github.com/joho/godotenv"

	"github.com/yourorg/rdcredit/internal/auth"
	"github.com/yourorg/rdcredit/internal/escalate"
	"github.com/yourorg/rdcredit/internal/httpapi"
	"github.com/yourorg/rdcredit/internal/ledger"
	"github.com/yourorg/rdcredit/internal/qre"
	"github.com/yourorg/rdcredit/internal/router"
	"github.com/yourorg/rdcredit/internal/rules"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpCfg := httpapi.LoadConfig()
	ledgerCfg := ledger.LoadConfig()
	authCfg := auth.LoadConfig()
	escCfg := escalate.LoadConfig()
	routerCfg := router.LoadConfig()

	store, err := openLedgerStore(ctx, ledgerCfg)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer store.Close()

	var signer ledger.Signer
	if ledgerCfg.SigningKey != "" {
		signer = ledger.NewHMACSigner([]byte(ledgerCfg.SigningKey))
	}
	led, err := ledger.Open(ctx, store, signer, ledgerCfg.RecoveryDepth, logger)
	if err != nil {
		// a failed recovery still serves reads; appends stay blocked
		var ierr *ledger.IntegrityError
		if !errors.As(err, &ierr) {
			return fmt.Errorf("open ledger: %w", err)
		}
		logger.Error("ledger opened halted", "seq", ierr.Seq, "reason", ierr.Reason)
	}

	ruleset, err := loadRuleset(logger)
	if err != nil {
		return err
	}

	gateway := escalate.NewGateway(escCfg, escalate.NewHTTPClassifier(escCfg), logger)
	rtr := router.New(routerCfg, ruleset, gateway, led, logger)
	calc := qre.NewCalculator(qre.DefaultConfig())

	authStore := auth.NewInMemoryStore(authCfg)
	if err := authStore.SeedFromConfig(); err != nil {
		return fmt.Errorf("seed API keys: %w", err)
	}
	limiter := auth.NewRateLimiter(authCfg.RateLimitPerMinute)

	svc := httpapi.NewService(httpCfg, rtr, led, calc, httpapi.NewMemoryProjectStore(), logger)
	srv := &http.Server{
		Addr:         httpCfg.Addr,
		Handler:      httpapi.NewRouter(svc, authStore, limiter, logger),
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
		IdleTimeout:  httpCfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", httpCfg.Addr, "ledgerBackend", ledgerCfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("api stopped")
	return nil
}

func openLedgerStore(ctx context.Context, cfg ledger.Config) (ledger.Store, error) {
	switch cfg.Backend {
	case "memory":
		return ledger.NewMemoryStore(), nil
	case "sqlite":
		return ledger.OpenSQLiteStore(ctx, cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func loadRuleset(logger *slog.Logger) (rules.Ruleset, error) {
	path := os.Getenv("RULESET_PATH")
	if path == "" {
		return rules.DefaultRuleset(), nil
	}
	rs, err := rules.LoadRuleset(path)
	if err != nil {
		return rules.Ruleset{}, fmt.Errorf("load ruleset: %w", err)
	}
	logger.Info("ruleset loaded", "path", path, "version", rs.Version)
	return rs, nil
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
