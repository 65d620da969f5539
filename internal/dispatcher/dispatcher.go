// Package dispatcher turns fresh listings into alerts and hands them to a
// notifier one by one.
package dispatcher

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/roomwatch/internal/listing"
	"github.com/JakeFAU/roomwatch/internal/metrics"
)

// DefaultHeader opens every alert message.
const DefaultHeader = "URGENT: NEW RENT POSTING ON WOKO"

// Config controls message formatting and delivery.
type Config struct {
	Header string
	// Timeout bounds each send; zero leaves it to the notifier.
	Timeout time.Duration
}

// Summary counts the outcome of one dispatch.
type Summary struct {
	Sent    int
	Failed  int
	Skipped int
}

// Dispatcher sends alerts for fresh listings. A failed send is logged and
// counted; it never stops the remaining listings.
type Dispatcher struct {
	notifier listing.Notifier
	ledger   listing.Ledger
	clock    listing.Clock
	header   string
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a Dispatcher. notifier may be nil, which disables alerting.
// ledger may be nil, which gives at-least-once delivery.
func New(notifier listing.Notifier, ledger listing.Ledger, clock listing.Clock, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	header := cfg.Header
	if strings.TrimSpace(header) == "" {
		header = DefaultHeader
	}
	return &Dispatcher{
		notifier: notifier,
		ledger:   ledger,
		clock:    clock,
		header:   header,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Enabled reports whether a notifier is configured.
func (d *Dispatcher) Enabled() bool {
	return d.notifier != nil
}

// Dispatch sends one alert per fresh listing in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, runID string, fresh []listing.Listing) Summary {
	var summary Summary
	if len(fresh) == 0 {
		return summary
	}
	if d.notifier == nil {
		d.logger.Info("notifier not configured; skipping alerts", zap.Int("fresh", len(fresh)))
		summary.Skipped = len(fresh)
		metrics.ObserveAlerts(metrics.AlertSkipped, len(fresh))
		return summary
	}

	for _, item := range fresh {
		log := d.logger.With(zap.Int64("listing_id", item.ID), zap.String("run_id", runID))
		if d.alreadyAlerted(ctx, item.ID, log) {
			summary.Skipped++
			metrics.ObserveAlerts(metrics.AlertSkipped, 1)
			continue
		}
		alert := listing.Alert{RunID: runID, Listing: item, Text: Format(d.header, item)}
		if err := d.send(ctx, alert); err != nil {
			log.Warn("alert delivery failed", zap.Error(err))
			summary.Failed++
			metrics.ObserveAlerts(metrics.AlertFailed, 1)
			continue
		}
		summary.Sent++
		metrics.ObserveAlerts(metrics.AlertSent, 1)
		log.Info("alert sent", zap.String("title", item.Title))
		d.mark(ctx, item.ID, log)
	}
	return summary
}

func (d *Dispatcher) send(ctx context.Context, alert listing.Alert) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.notifier.Send(ctx, alert)
}

func (d *Dispatcher) alreadyAlerted(ctx context.Context, id int64, log *zap.Logger) bool {
	if d.ledger == nil {
		return false
	}
	seen, err := d.ledger.Seen(ctx, id)
	if err != nil {
		log.Warn("ledger lookup failed; sending anyway", zap.Error(err))
		return false
	}
	if seen {
		log.Debug("listing already alerted")
	}
	return seen
}

func (d *Dispatcher) mark(ctx context.Context, id int64, log *zap.Logger) {
	if d.ledger == nil {
		return
	}
	if err := d.ledger.Mark(ctx, id, d.now()); err != nil {
		log.Warn("ledger mark failed", zap.Error(err))
	}
}

func (d *Dispatcher) now() time.Time {
	if d.clock == nil {
		return time.Now().UTC()
	}
	return d.clock.Now()
}

// Format renders the alert text for l.
func Format(header string, l listing.Listing) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(l.Title)
	b.WriteString("\nType: ")
	b.WriteString(l.Type.Label())
	b.WriteString("\nPosted: ")
	b.WriteString(listing.FormatTimestamp(l.PostedAt))
	b.WriteString("\n")
	b.WriteString(l.Link)
	return b.String()
}
