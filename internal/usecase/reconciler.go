package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	domrepo "SentiTrade/internal/domain/repository"
	applogger "SentiTrade/pkg/logger"
)

// PositionReconciler mirrors the broker's positions into the durable store.
type PositionReconciler struct {
	broker    domrepo.Broker
	positions domrepo.PositionStore
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	now       func() time.Time
}

func NewPositionReconciler(broker domrepo.Broker, positions domrepo.PositionStore, metrics domrepo.Metrics, logger *applogger.Logger) *PositionReconciler {
	return &PositionReconciler{broker: broker, positions: positions, metrics: metrics, logger: logger, now: time.Now}
}

// Reconcile upserts every broker position and returns how many rows were written.
// Mirror rows for instruments the broker no longer reports are kept and logged.
func (r *PositionReconciler) Reconcile(ctx context.Context) (int, error) {
	start := r.now()
	live, err := r.broker.ListPositions(ctx)
	if err != nil {
		r.metrics.RecordError("reconcile_broker")
		return 0, fmt.Errorf("reconcile: list broker positions: %w", errors.Join(models.ErrBrokerUnavailable, err))
	}

	seen := make(map[string]struct{}, len(live))
	var errs []error
	updated := 0
	for i := range live {
		p := live[i]
		p.TotalValue = p.Quantity.Mul(p.CurrentPrice)
		p.LastUpdated = r.now().UTC()
		seen[p.Instrument] = struct{}{}
		if err := r.positions.UpsertPosition(ctx, &p); err != nil {
			errs = append(errs, fmt.Errorf("upsert %s: %w", p.Instrument, err))
			continue
		}
		updated++
	}

	r.reportStale(ctx, seen)
	r.metrics.RecordPositions(updated)
	r.metrics.RecordLatency("reconcile", r.now().Sub(start).Seconds())

	if len(errs) > 0 {
		r.metrics.RecordError("reconcile_upsert")
		return updated, fmt.Errorf("reconcile: %w", errors.Join(errs...))
	}
	return updated, nil
}

func (r *PositionReconciler) reportStale(ctx context.Context, seen map[string]struct{}) {
	mirror, err := r.positions.ListPositions(ctx)
	if err != nil {
		r.logger.Debug("mirror listing failed", applogger.Error(err))
		return
	}
	for _, m := range mirror {
		if _, ok := seen[m.Instrument]; ok {
			continue
		}
		if !m.Quantity.IsZero() {
			r.metrics.RecordError("reconcile_stale")
			r.logger.Warn("mirrored position missing at broker",
				applogger.String("instrument", m.Instrument),
				applogger.String("mirror_quantity", m.Quantity.String()),
				applogger.Any("last_updated", m.LastUpdated),
			)
		}
	}
}
