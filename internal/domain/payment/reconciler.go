package payment

import (
	"context"
	"time"

	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/model"
)

type ReconcilerConfig struct {
	Interval   time.Duration
	Grace      time.Duration // how long a completed payment may wait for its callback's verification
	StaleAfter time.Duration // how long an initiated payment may wait for any callback
	BatchSize  int
}

type SweepStats struct {
	Checked    int
	Verified   int
	Unverified int
	Skipped    int
}

// Reconciler sweeps payments stuck in completed or initiated and pushes them
// through the same guarded updates the callback uses. Running it on several
// instances at once is safe.
type Reconciler struct {
	svc *Service
	cfg ReconcilerConfig
	log *logger.Logger
}

func NewReconciler(svc *Service, cfg ReconcilerConfig, log *logger.Logger) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reconciler{svc: svc, cfg: cfg, log: log.Component("reconciler")}
}

// Run sweeps immediately and then on every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Info("reconciler started", "interval", r.cfg.Interval)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("reconcile sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) RunOnce(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := r.svc.now()

	completed, err := r.svc.store.FindByPaymentStatus(ctx, model.PaymentCompleted, now.Add(-r.cfg.Grace), r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	for _, o := range completed {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Checked++
		res, err := r.svc.verify(ctx, o)
		r.tally(&stats, res, err)
	}

	initiated, err := r.svc.store.FindByPaymentStatus(ctx, model.PaymentInitiated, now.Add(-r.cfg.StaleAfter), r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	for _, o := range initiated {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Checked++

		v, err := r.svc.gateway.Verify(ctx, o.ID)
		if err != nil {
			r.log.Debug("stale payment not confirmed by gateway", "order_id", o.ID, "error", err)
			stats.Skipped++
			continue
		}
		if !v.Succeeded() {
			stats.Skipped++
			continue
		}

		res, err := r.svc.HandleCallback(ctx, o.ID, v.Status)
		r.tally(&stats, res, err)
	}

	if stats.Checked > 0 {
		r.log.Info("reconcile sweep finished",
			"checked", stats.Checked, "verified", stats.Verified,
			"unverified", stats.Unverified, "skipped", stats.Skipped)
	}
	return stats, nil
}

func (r *Reconciler) tally(stats *SweepStats, res *CallbackResult, err error) {
	switch {
	case err != nil:
		r.log.Warn("reconcile step failed", "error", err)
		stats.Skipped++
	case res.Outcome == OutcomeVerified:
		stats.Verified++
	case res.Outcome == OutcomeUnverified:
		stats.Unverified++
	default:
		stats.Skipped++
	}
}
