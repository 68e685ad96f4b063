// Package worker holds background jobs that run alongside the API server.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
)

// ReminderSender sends the abandoned-cart nudge email.
type ReminderSender interface {
	AbandonedCartReminder(ctx context.Context, c *cart.Cart) error
}

// AbandonedCartConfig tunes the reminder job.
type AbandonedCartConfig struct {
	// Interval is how often the job scans for abandoned carts.
	Interval time.Duration
	// Threshold is how long a cart must sit untouched before it counts
	// as abandoned.
	Threshold time.Duration
	// Cooldown is the minimum gap between two reminders for one cart.
	Cooldown time.Duration
}

// AbandonedCartReminder periodically emails customers who left items in
// their cart. Only carts with a known owner email are ever contacted.
type AbandonedCartReminder struct {
	carts  cart.Repository
	sender ReminderSender
	cfg    AbandonedCartConfig
	lg     *zap.Logger
	now    func() time.Time
}

// NewAbandonedCartReminder creates the reminder job.
func NewAbandonedCartReminder(carts cart.Repository, sender ReminderSender, cfg AbandonedCartConfig, lg *zap.Logger) *AbandonedCartReminder {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 24 * time.Hour
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 48 * time.Hour
	}
	return &AbandonedCartReminder{
		carts:  carts,
		sender: sender,
		cfg:    cfg,
		lg:     lg,
		now:    time.Now,
	}
}

// Run executes the job on its interval until the context is cancelled. One
// sweep runs immediately on start.
func (w *AbandonedCartReminder) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep sends one reminder batch. Per-cart failures are logged and skipped
// so one bad address never stalls the rest.
func (w *AbandonedCartReminder) sweep(ctx context.Context) {
	now := w.now()
	carts, err := w.carts.ListAbandoned(ctx, now.Add(-w.cfg.Threshold), now.Add(-w.cfg.Cooldown))
	if err != nil {
		w.lg.Error("list abandoned carts", zap.Error(err))
		return
	}
	if len(carts) == 0 {
		return
	}
	w.lg.Info("sending abandoned cart reminders", zap.Int("count", len(carts)))

	for i := range carts {
		c := &carts[i]
		if c.OwnerEmail == "" || len(c.Items) == 0 {
			continue
		}
		if err := w.sender.AbandonedCartReminder(ctx, c); err != nil {
			w.lg.Warn("send abandoned cart reminder",
				zap.String("cart_id", c.ID), zap.Error(err))
			continue
		}
		if err := w.carts.MarkReminded(ctx, c.ID, now); err != nil {
			w.lg.Error("mark cart reminded",
				zap.String("cart_id", c.ID), zap.Error(err))
		}
	}
}
