package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/focusgroup/focusbot/internal/api"
	"github.com/focusgroup/focusbot/internal/app/lifecycle"
	"github.com/focusgroup/focusbot/internal/app/summary"
	"github.com/focusgroup/focusbot/internal/app/tracker"
	"github.com/focusgroup/focusbot/internal/health"
	"github.com/focusgroup/focusbot/internal/infra/intent"
	"github.com/focusgroup/focusbot/internal/infra/outbox"
	"github.com/focusgroup/focusbot/internal/infra/sqlite"
	"github.com/focusgroup/focusbot/internal/infra/telegram"
)

// outboxInterval is how often failed replies are retried.
const outboxInterval = time.Second

// Daemon is the focusbot runtime. It wires together all services.
type Daemon struct {
	Config     Config
	Log        *slog.Logger
	DB         *sqlite.DB
	Store      *tracker.Store
	Classifier *intent.Chain
	Telegram   *telegram.Client
	Events     *lifecycle.Service
	Outbox     *outbox.Queue
	Digest     *summary.DigestJob
	Aggregator *summary.Aggregator
	Health     *health.Checker
	Server     *api.Server
	cancel     context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	dataDir := cfg.Storage.Dir
	if dataDir == "" {
		dataDir = focusbotHome()
	}
	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Tracker.Timezone)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	store := tracker.NewStore(db, tracker.StoreConfig{
		Location: loc,
		MaxScan:  cfg.Tracker.MaxScan,
		Logger:   logger,
	})

	classifier, err := NewClassifier(cfg.Classifier, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	tg := telegram.NewClient(telegram.Config{
		Token:   cfg.Telegram.BotToken,
		APIBase: cfg.Telegram.APIBase,
		Timeout: parseDuration(cfg.Telegram.Timeout, 10*time.Second),
		Logger:  logger,
	})
	if !tg.Enabled() {
		logger.Warn("telegram bot token not set; replies will be dropped")
	}

	queue := outbox.NewQueue(outbox.RetryConfig{
		MaxRetries: cfg.Telegram.MaxRetries,
		Retryable:  telegram.IsRetryable,
		Logger:     logger,
	})
	events := lifecycle.NewService(store, classifier, tg, lifecycle.Config{
		ConfirmPrivateStarts: cfg.Tracker.ConfirmPrivateStarts,
		Outbox:               queue,
		Logger:               logger,
	})
	digest := summary.NewDigestJob(store, tg, summary.JobConfig{
		Concurrency: cfg.Digest.Concurrency,
		Logger:      logger,
	})
	checker := health.NewChecker(db, dataDir, tg)

	srv := api.NewServer(events, store, classifier)
	srv.SetLogger(logger)
	srv.SetWebhookSecret(cfg.API.WebhookSecret)
	srv.SetAdminToken(cfg.API.AdminToken)
	srv.SetDigestJob(digest)
	srv.SetHealth(checker)
	srv.SetOutbox(queue)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:     cfg,
		Log:        logger,
		DB:         db,
		Store:      store,
		Classifier: classifier,
		Telegram:   tg,
		Events:     events,
		Outbox:     queue,
		Digest:     digest,
		Aggregator: summary.NewAggregator(store),
		Health:     checker,
		Server:     srv,
	}, nil
}

// NewClassifier builds the pattern-first chain. The model fallback is only
// attached when an API key is configured.
func NewClassifier(cfg ClassifierConfig, logger *slog.Logger) (*intent.Chain, error) {
	var rules *intent.CategoryRules
	if cfg.CategoriesFile != "" {
		data, err := os.ReadFile(cfg.CategoriesFile)
		if err != nil {
			return nil, fmt.Errorf("read categories: %w", err)
		}
		if rules, err = intent.ParseCategoryRules(data); err != nil {
			return nil, fmt.Errorf("parse categories: %w", err)
		}
	}

	var model *intent.ModelClassifier
	if cfg.AnthropicAPIKey != "" {
		model = intent.NewModelClassifier(intent.NewAnthropicClient(intent.AnthropicConfig{
			APIKey:     cfg.AnthropicAPIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.APIBase,
			Timeout:    parseDuration(cfg.Timeout, 15*time.Second),
			MaxRetries: cfg.MaxRetries,
		}))
	} else {
		logger.Info("no anthropic api key; classifying with patterns only")
	}
	return intent.NewChain(model, rules, logger), nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.cancel = cancel

	go d.Health.Run(ctx)
	go d.Outbox.Run(ctx, d.Telegram, outboxInterval)

	if d.Config.Digest.Enabled {
		go func() {
			if err := d.Digest.Schedule(ctx, d.Config.Digest.At); err != nil {
				d.Log.Error("digest scheduler stopped", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			d.Log.Warn("shutdown incomplete", "error", err)
		}
	}()

	d.Log.Info("focusbot serving", "addr", "http://"+addr,
		"telegram", d.Telegram.Enabled(),
		"digest", d.Config.Digest.Enabled,
		"metrics", d.Config.Telemetry.Prometheus)

	err := httpServer.ListenAndServe()
	cancel()
	<-drained
	_ = d.DB.Close()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	d.Log.Info("focusbot stopped")
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
