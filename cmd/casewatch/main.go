package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/casewatch/internal/adapter/driven/brevo"
	"github.com/ericfisherdev/casewatch/internal/adapter/driven/courtapi"
	sqliteadapter "github.com/ericfisherdev/casewatch/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/casewatch/internal/adapter/driving/http"
	"github.com/ericfisherdev/casewatch/internal/application"
	"github.com/ericfisherdev/casewatch/internal/config"
	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required values).
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("db_path", cfg.DBPath),
		zap.String("court_api", cfg.CourtAPIBaseURL),
		zap.Bool("mailer", cfg.HasMailer()),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", zap.Error(closeErr))
		}
	}()

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	logger.Info("migrations complete")

	// 5. Wire driven adapters.
	creditStore := sqliteadapter.NewCreditRepo(db)
	workspaceStore := sqliteadapter.NewWorkspaceRepo(db)
	caseStore := sqliteadapter.NewCaseRepo(db)
	pollConfigStore := sqliteadapter.NewPollConfigRepo(db)
	extractionStore := sqliteadapter.NewExtractionRepo(db)

	provider, err := courtapi.NewClient(cfg.CourtAPIBaseURL, cfg.CourtAPIKey, logger.Named("courtapi"),
		courtapi.WithRateLimit(rate.Limit(cfg.CourtAPIRate), cfg.CourtAPIBurst),
	)
	if err != nil {
		return err
	}

	var mailer driven.Mailer = discardMailer{logger: logger.Named("mail")}
	if cfg.HasMailer() {
		mailer = brevo.NewMailer(cfg.BrevoAPIKey,
			brevo.Sender{Name: cfg.MailFromName, Email: cfg.MailFrom},
			brevo.WithBaseURL(cfg.BrevoBaseURL),
		)
	} else {
		logger.Warn("no mail transport configured, notifications will be logged and dropped")
	}

	// 6. Create application services.
	notifySvc := application.NewNotifyService(mailer, cfg.AdminAlertEmail, logger.Named("notify"))
	creditSvc := application.NewCreditService(creditStore, workspaceStore, logger.Named("credits"),
		application.WithLowBalanceAlerter(notifySvc, cfg.LowBalanceThreshold),
		application.WithAllotments(map[model.CreditKind]int64{
			model.CreditResearch:   cfg.ResearchAllotment,
			model.CreditExtraction: cfg.ExtractionAllotment,
		}),
	)
	extractionSvc := application.NewExtractionService(extractionStore, logger.Named("extractions"))
	caseSvc := application.NewCaseService(caseStore, logger.Named("cases"))

	registry := application.NewScheduleRegistry(logger.Named("cron"))
	pollSvc := application.NewPollService(
		pollConfigStore,
		caseStore,
		provider,
		creditSvc,
		notifySvc,
		registry,
		logger.Named("poll"),
		application.WithCycleTimeout(cfg.CycleTimeout),
	)

	// 7. Re-arm stored schedules before the runner starts.
	restored, err := pollSvc.Restore(ctx)
	if err != nil {
		return err
	}

	// 8. Create HTTP handler.
	apiHandler := httphandler.NewHandler(creditSvc, extractionSvc, caseSvc, pollSvc,
		httphandler.NewAuthenticator(cfg.JWTSecret), logger.Named("http"))
	router := httphandler.NewRouter(apiHandler, cfg.AdminToken, logger.Named("http"))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		notifySvc.Start(gctx)
		return nil
	})

	g.Go(func() error {
		pollSvc.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("http server starting", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// 9. Graceful shutdown with 10s timeout for HTTP server drain.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
		return nil
	})

	logger.Info("casewatch started",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Int("schedules_restored", restored),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// discardMailer stands in for the mail transport when none is configured.
type discardMailer struct {
	logger *zap.Logger
}

func (m discardMailer) Send(_ context.Context, msg driven.Email) error {
	m.logger.Warn("mail dropped", zap.String("subject", msg.Subject), zap.Strings("to", msg.To))
	return nil
}
