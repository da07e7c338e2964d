package sched

import (
	"context"
	"time"

	"telegram-research-relay/internal/usecase"

	"github.com/rs/zerolog"
)

type ReconcileWorker struct {
	interval    time.Duration
	reconcileUC usecase.ReconcileUseCase
	log         *zerolog.Logger
}

func NewReconcileWorker(interval time.Duration, reconcileUC usecase.ReconcileUseCase, logger *zerolog.Logger) *ReconcileWorker {
	compLog := logger.With().Str("component", "ReconcileWorker").Logger()
	return &ReconcileWorker{
		interval:    interval,
		reconcileUC: reconcileUC,
		log:         &compLog,
	}
}

// Run reconciles on every tick until ctx is cancelled. The registry starts empty,
// so the first cycle waits one full interval. A cycle that overruns the interval
// delays the next tick instead of overlapping it.
func (w *ReconcileWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting reconcile worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reconcile worker")
			return ctx.Err()
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *ReconcileWorker) runCycle(ctx context.Context) {
	report := w.reconcileUC.RunCycle(ctx)
	if report.Checked > 0 {
		w.log.Debug().
			Int("checked", report.Checked).
			Int("pending", report.Pending).
			Int("resolved", report.ResolvedTotal()).
			Msg("reconcile tick")
	}
}
