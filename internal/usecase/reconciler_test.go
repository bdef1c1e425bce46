package usecase

import (
	"context"
	"errors"
	"testing"

	"SentiTrade/internal/domain/models"
	"SentiTrade/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position(instrument string, qty, avg, current string) models.Position {
	return models.Position{
		Instrument:    instrument,
		Quantity:      decimal.RequireFromString(qty),
		AveragePrice:  decimal.RequireFromString(avg),
		CurrentPrice:  decimal.RequireFromString(current),
		UnrealizedPnL: decimal.RequireFromString(qty).Mul(decimal.RequireFromString(current).Sub(decimal.RequireFromString(avg))),
	}
}

func TestReconcileOverwritesWithoutDuplicating(t *testing.T) {
	b := newFakeBroker()
	store := newFakePositions()
	r := NewPositionReconciler(b, store, metrics.Nop{}, nopLogger)

	b.positions = []models.Position{position("AAPL", "10", "150", "155")}
	n, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b.positions = []models.Position{position("AAPL", "10", "150", "160")}
	n, err = r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := store.ListPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "160", rows[0].CurrentPrice.String())
	assert.Equal(t, "100", rows[0].UnrealizedPnL.String())
	assert.Equal(t, "1600", rows[0].TotalValue.String())
	assert.False(t, rows[0].LastUpdated.IsZero())
}

func TestReconcileKeepsStaleMirrorRows(t *testing.T) {
	b := newFakeBroker()
	store := newFakePositions()
	store.rows["TSLA"] = position("TSLA", "3", "200", "210")
	b.positions = []models.Position{position("AAPL", "1", "100", "100")}

	n, err := NewPositionReconciler(b, store, metrics.Nop{}, nopLogger).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, _ := store.ListPositions(context.Background())
	assert.Len(t, rows, 2)
}

func TestReconcileBrokerDown(t *testing.T) {
	b := newFakeBroker()
	b.listErr = errors.New("timeout")
	store := newFakePositions()

	n, err := NewPositionReconciler(b, store, metrics.Nop{}, nopLogger).Reconcile(context.Background())
	assert.Zero(t, n)
	assert.ErrorIs(t, err, models.ErrBrokerUnavailable)
	assert.Zero(t, store.upserts)
}
