// Package app builds the collaborators of a run from configuration and owns
// their shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/roomwatch/internal/clock/system"
	"github.com/JakeFAU/roomwatch/internal/config"
	apperrors "github.com/JakeFAU/roomwatch/internal/errors"
	"github.com/JakeFAU/roomwatch/internal/extract"
	collyfetcher "github.com/JakeFAU/roomwatch/internal/fetcher/colly"
	"github.com/JakeFAU/roomwatch/internal/fetcher/headless"
	"github.com/JakeFAU/roomwatch/internal/id/uuid"
	ledgermem "github.com/JakeFAU/roomwatch/internal/ledger/memory"
	ledgerpg "github.com/JakeFAU/roomwatch/internal/ledger/postgres"
	ledgerredis "github.com/JakeFAU/roomwatch/internal/ledger/redis"
	"github.com/JakeFAU/roomwatch/internal/listing"
	"github.com/JakeFAU/roomwatch/internal/metrics"
	pubsubnotify "github.com/JakeFAU/roomwatch/internal/notify/pubsub"
	"github.com/JakeFAU/roomwatch/internal/notify/telegram"
	"github.com/JakeFAU/roomwatch/internal/pipeline"
	"github.com/JakeFAU/roomwatch/internal/storage/gcs"
	"github.com/JakeFAU/roomwatch/internal/storage/local"
)

// App holds the runner and everything that must be released after it.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runner  *pipeline.Runner
	closers []func()
}

// New wires every collaborator described by cfg. On failure anything already
// opened is released.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	metrics.Init()

	source, err := a.buildSource()
	if err != nil {
		return nil, apperrors.Config("build source", err)
	}
	extractor, err := a.buildExtractor()
	if err != nil {
		return nil, apperrors.Config("build extractor", err)
	}
	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, apperrors.Config("build store", err)
	}
	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		return nil, apperrors.Config("build notifier", err)
	}
	ledger, err := a.buildLedger(ctx)
	if err != nil {
		return nil, apperrors.Config("build ledger", err)
	}
	types, err := cfg.ListingTypes()
	if err != nil {
		return nil, apperrors.Config("listing types", err)
	}

	a.runner, err = pipeline.New(pipeline.Deps{
		Source:    source,
		Extractor: extractor,
		Store:     store,
		Notifier:  notifier,
		Ledger:    ledger,
		Clock:     system.New(),
		IDs:       uuid.New(),
	}, pipeline.Config{
		SourceURL:    cfg.Source.URL,
		Window:       cfg.FreshWindow(),
		Types:        types,
		AlertHeader:  cfg.Alert.Header,
		AlertTimeout: cfg.AlertTimeout(),
	}, logger.Named("pipeline"))
	if err != nil {
		return nil, apperrors.Config("build pipeline", err)
	}

	logger.Info("application services initialized",
		zap.String("store", store.Location()),
		zap.Bool("alerts_enabled", notifier != nil),
		zap.String("ledger", cfg.Ledger.Provider),
	)
	return a, nil
}

// Run executes one pass and pushes metrics when a Pushgateway is configured.
func (a *App) Run(ctx context.Context) (pipeline.Result, error) {
	res, err := a.runner.Run(ctx)
	if pushErr := metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); pushErr != nil {
		a.logger.Warn("metrics push failed", zap.Error(pushErr))
	}
	return res, err
}

// Close releases collaborators in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) buildSource() (listing.Source, error) {
	src := a.cfg.Source
	headers := http.Header{}
	headers.Set("Accept", "text/html,application/xhtml+xml")
	headers.Set("Accept-Language", "en-US,en;q=0.9")

	if src.Headless {
		f, err := headless.NewChromedp(headless.Config{
			URL:               src.URL,
			UserAgent:         src.UserAgent,
			Headers:           headers,
			NavigationTimeout: time.Duration(src.NavTimeoutSeconds) * time.Second,
			WaitSelector:      src.WaitSelector,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(f.Close)
		a.logger.Info("using headless source", zap.String("url", src.URL))
		return f, nil
	}
	return collyfetcher.New(collyfetcher.Config{
		URL:       src.URL,
		UserAgent: src.UserAgent,
		Headers:   headers,
		Timeout:   a.cfg.SourceTimeout(),
	})
}

func (a *App) buildExtractor() (listing.Extractor, error) {
	loc, err := time.LoadLocation(a.cfg.Source.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return extract.New(extract.Config{
		Origin:   a.cfg.Source.Origin,
		Selector: a.cfg.Source.Selector,
		Location: loc,
	}, a.logger.Named("extract"))
}

func (a *App) buildStore(ctx context.Context) (listing.Store, error) {
	switch a.cfg.Store.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose(func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("error closing gcs client", zap.Error(err))
			}
		})
		return gcs.New(client, gcs.Config{Bucket: a.cfg.Store.Bucket, Object: a.cfg.Store.Object})
	case "local":
		return local.New(local.Config{Path: a.cfg.Store.Path})
	default:
		return nil, fmt.Errorf("unknown store provider %q", a.cfg.Store.Provider)
	}
}

func (a *App) buildNotifier(ctx context.Context) (listing.Notifier, error) {
	switch a.cfg.Alert.Channel {
	case "telegram":
		tcfg := telegram.Config{
			Token:   a.cfg.Telegram.Token,
			ChatID:  a.cfg.Telegram.ChatID,
			APIBase: a.cfg.Telegram.APIBase,
			Timeout: a.cfg.AlertTimeout(),
		}
		if !tcfg.Configured() {
			a.logger.Info("telegram credentials missing; alerts disabled")
			return nil, nil
		}
		return telegram.New(tcfg)
	case "pubsub":
		pcfg := pubsubnotify.Config{ProjectID: a.cfg.PubSub.ProjectID, TopicID: a.cfg.PubSub.TopicID}
		if !pcfg.Configured() {
			a.logger.Info("pubsub project or topic missing; alerts disabled")
			return nil, nil
		}
		client, err := gcpubsub.NewClient(ctx, pcfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		a.onClose(func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("error closing pubsub client", zap.Error(err))
			}
		})
		n, err := pubsubnotify.New(client.Topic(pcfg.TopicID))
		if err != nil {
			return nil, err
		}
		a.onClose(n.Close)
		return n, nil
	case "none":
		a.logger.Info("alert channel disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown alert channel %q", a.cfg.Alert.Channel)
	}
}

func (a *App) buildLedger(ctx context.Context) (listing.Ledger, error) {
	lc := a.cfg.Ledger
	switch lc.Provider {
	case "none", "":
		return nil, nil
	case "memory":
		return ledgermem.New(), nil
	case "postgres":
		l, err := ledgerpg.New(ctx, ledgerpg.Config{DSN: lc.DSN, Table: lc.Table, MaxConns: lc.MaxConns})
		if err != nil {
			return nil, err
		}
		a.onClose(l.Close)
		return l, nil
	case "redis":
		l, err := ledgerredis.New(ledgerredis.Config{
			Addr:     lc.RedisAddr,
			Password: lc.RedisPassword,
			DB:       lc.RedisDB,
			TTL:      a.cfg.LedgerTTL(),
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func() {
			if err := l.Close(); err != nil {
				a.logger.Warn("error closing redis client", zap.Error(err))
			}
		})
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger provider %q", lc.Provider)
	}
}
