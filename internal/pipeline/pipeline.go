// Package pipeline runs one scrape pass: fetch the board, reconcile it with
// the stored history, persist on change and alert on fresh listings.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/roomwatch/internal/dispatcher"
	apperrors "github.com/JakeFAU/roomwatch/internal/errors"
	"github.com/JakeFAU/roomwatch/internal/freshness"
	"github.com/JakeFAU/roomwatch/internal/history"
	"github.com/JakeFAU/roomwatch/internal/listing"
	"github.com/JakeFAU/roomwatch/internal/metrics"
	"github.com/JakeFAU/roomwatch/internal/reconcile"
)

// Deps are the collaborators of a run. Notifier and Ledger may be nil.
type Deps struct {
	Source    listing.Source
	Extractor listing.Extractor
	Store     listing.Store
	Notifier  listing.Notifier
	Ledger    listing.Ledger
	Clock     listing.Clock
	IDs       listing.IDGenerator
}

// Config holds the resolved run settings.
type Config struct {
	// SourceURL labels fetch metrics.
	SourceURL    string
	Window       time.Duration
	Types        []listing.Type
	AlertHeader  string
	AlertTimeout time.Duration
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Scraped    int
	Reconciled reconcile.Summary
	Changed    bool
	Fresh      []listing.Listing
	Dispatch   dispatcher.Summary
}

// Runner executes passes.
type Runner struct {
	deps       Deps
	cfg        Config
	writer     *history.Writer
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
}

// New validates deps and builds a Runner.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("source is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("store is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		deps:   deps,
		cfg:    cfg,
		writer: history.NewWriter(deps.Store, logger.Named("history")),
		dispatcher: dispatcher.New(deps.Notifier, deps.Ledger, deps.Clock, dispatcher.Config{
			Header:  cfg.AlertHeader,
			Timeout: cfg.AlertTimeout,
		}, logger.Named("dispatcher")),
		logger: logger,
	}, nil
}

// Run performs one pass. Fetch, parse and store failures abort before any
// write; alert failures only show up in Result.Dispatch.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	start := r.deps.Clock.Now()
	defer func() {
		metrics.ObserveRun(r.deps.Clock.Now().Sub(start), err == nil, r.deps.Clock.Now())
	}()

	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	res.RunID = runID
	log := r.logger.With(zap.String("run_id", runID))

	raw, err := r.deps.Source.Fetch(ctx)
	if err != nil {
		metrics.ObserveFetch(r.cfg.SourceURL, "error", 0)
		return res, ensureKind(apperrors.KindFetch, "fetch board", err)
	}
	metrics.ObserveFetch(r.cfg.SourceURL, "ok", len(raw))

	snapshot, err := r.deps.Extractor.Parse(raw)
	if err != nil {
		return res, ensureKind(apperrors.KindParse, "parse board", err)
	}
	res.Scraped = len(snapshot)
	log.Info("board scraped", zap.Int("listings", len(snapshot)), zap.Int("bytes", len(raw)))

	prior, err := r.writer.Load(ctx)
	if err != nil {
		return res, err
	}

	reconciled := reconcile.Reconcile(snapshot, prior)
	res.Reconciled = reconcile.Summarize(prior, reconciled)
	log.Info("history reconciled",
		zap.Int("new", res.Reconciled.New),
		zap.Int("reappeared", res.Reconciled.Reappeared),
		zap.Int("still_active", res.Reconciled.StillActive),
		zap.Int("vanished", res.Reconciled.Vanished),
		zap.Int("total", res.Reconciled.Total),
	)

	res.Changed, err = r.writer.SaveIfChanged(ctx, reconciled)
	if err != nil {
		metrics.ObserveStoreWrite(metrics.WriteError)
		return res, err
	}
	if res.Changed {
		metrics.ObserveStoreWrite(metrics.WriteChanged)
	} else {
		metrics.ObserveStoreWrite(metrics.WriteUnchanged)
	}

	now := r.deps.Clock.Now()
	res.Fresh = freshness.SelectFresh(snapshot, freshness.Options{
		Window: r.cfg.Window,
		Types:  r.cfg.Types,
	}, now)
	metrics.ObserveSnapshot(len(snapshot), len(res.Fresh), res.Reconciled.Vanished)
	log.Info("fresh listings selected",
		zap.Int("fresh", len(res.Fresh)),
		zap.Duration("window", r.cfg.Window),
	)

	res.Dispatch = r.dispatcher.Dispatch(ctx, runID, res.Fresh)
	if res.Dispatch.Failed > 0 {
		log.Warn("some alerts were not delivered", zap.Int("failed", res.Dispatch.Failed))
	}
	return res, nil
}

// ensureKind tags err with kind unless it already carries one.
func ensureKind(kind apperrors.Kind, msg string, err error) error {
	if _, ok := apperrors.KindOf(err); ok {
		return err
	}
	return apperrors.New(kind, msg, err)
}
