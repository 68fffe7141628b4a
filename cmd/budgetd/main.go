package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/aiextract"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/alias"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/document"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/export"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/extract"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/job"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/locate"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/ocr"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/repository"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/review"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/server"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/tablebuild"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/validate"
)

func main() {
	// Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Config
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health failed", "error", err)
		os.Exit(1)
	}
	if err := repository.Migrate(db); err != nil {
		logger.Error("migrating schema", "error", err)
		os.Exit(1)
	}

	// Repositories
	batchRepo := repository.NewBatchRepository(db, logger)
	aliasRepo := repository.NewAliasRepository(db, logger)
	factStore := repository.NewHistoricalStore(db, logger)

	// Pipeline components
	resolver := alias.NewResolver(aliasRepo, logger)
	loader := document.NewLoader(logger)
	localizer := locate.NewLocalizer(locate.Config{
		MatchThreshold: cfg.Review.MatchThreshold,
	}, logger)
	builder := tablebuild.NewBuilder(logger)
	ruleEx := extract.NewRuleExtractor(resolver, logger)

	var aiEx extract.Extractor
	if cfg.AI.APIKey != "" {
		aiEx = aiextract.NewClient(aiextract.Config{
			Model:       cfg.AI.Model,
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}, resolver, logger)
	}

	fallback := ocr.NewFallback(ocr.Config{
		Enabled:     cfg.OCR.Enabled,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Lang:        cfg.OCR.Lang,
		DPI:         cfg.OCR.DPI,
		PageTimeout: cfg.OCR.PageTimeout,
	}, logger)

	engine := validate.NewEngine(validate.Config{
		Epsilon:      cfg.Review.BalanceEpsilon,
		YoYWarnRatio: cfg.Review.YoYWarnRatio,
	}, logger)

	svc := review.NewService(loader, localizer, builder, ruleEx, aiEx,
		fallback, resolver, engine, batchRepo, factStore, logger)
	exportSvc := export.NewService(batchRepo, logger)

	// Housekeeping
	cleanup := job.NewCleanup(batchRepo, cfg.Retention.RejectedTTL, cfg.Retention.CronSpec, logger)
	if err := cleanup.Start(); err != nil {
		logger.Error("scheduling cleanup", "error", err)
		os.Exit(1)
	}
	defer cleanup.Stop()

	// HTTP server
	engineHTTP := server.New(
		server.NewBatchHandler(svc, exportSvc, logger),
		server.NewAliasHandler(resolver),
		func(ctx context.Context) error {
			return repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger)
		},
		logger,
	)
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engineHTTP,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("shutdown complete")
}
