package animation

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"planner/internal/domain"
	"planner/internal/infra"
)

// Poller advances a single operation.
type Poller interface {
	Poll(ctx context.Context, operationID string) (Status, error)
}

// ReconcilerOptions configures the background loop.
type ReconcilerOptions struct {
	Steps      domain.StepRepository
	Poller     Poller
	Interval   time.Duration
	StaleAfter time.Duration
	Batch      int
	Logger     infra.Logger
}

// Reconciler polls processing steps that no client has refreshed recently so
// jobs finish even when nobody is watching.
type Reconciler struct {
	steps      domain.StepRepository
	poller     Poller
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	logger     infra.Logger
	now        func() time.Time
}

func NewReconciler(opts ReconcilerOptions) *Reconciler {
	r := &Reconciler{
		steps:      opts.Steps,
		poller:     opts.Poller,
		interval:   opts.Interval,
		staleAfter: opts.StaleAfter,
		batch:      opts.Batch,
		logger:     infra.Component(opts.Logger, "reconciler"),
		now:        time.Now,
	}
	if r.interval <= 0 {
		r.interval = 15 * time.Second
	}
	if r.batch <= 0 {
		r.batch = 10
	}
	return r
}

// Run ticks until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Dur("stale_after", r.staleAfter).Msg("reconciler: started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("reconciler: tick failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick polls one batch of stale operations and returns how many were polled.
// Poll failures are logged and do not abort the batch; the failing step is
// touched so the next tick reaches other stale steps.
func (r *Reconciler) Tick(ctx context.Context) (int, error) {
	stale, err := r.steps.ListStale(ctx, r.now().Add(-r.staleAfter), r.batch)
	if err != nil {
		return 0, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, step := range stale {
		opID := step.Animation.OperationID()
		if opID == "" {
			continue
		}
		g.Go(func() error {
			status, err := r.poller.Poll(gctx, opID)
			if err != nil {
				r.logger.Warn().Err(err).Str("operation_id", opID).Int64("step_id", step.ID).Msg("reconciler: poll failed")
				if gctx.Err() == nil {
					if terr := r.steps.TouchAnimation(gctx, opID); terr != nil {
						r.logger.Error().Err(terr).Str("operation_id", opID).Msg("reconciler: touch failed")
					}
				}
				return nil
			}
			r.logger.Debug().Str("operation_id", opID).Str("state", string(status.State)).Msg("reconciler: polled")
			return nil
		})
	}
	_ = g.Wait()
	return len(stale), nil
}
