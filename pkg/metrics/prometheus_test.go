package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordDecision("AAPL", "BUY")
	r.RecordDecision("AAPL", "BUY")
	r.RecordOrder("BUY", "filled")
	r.RecordAggregate("AAPL", 0.61, 2)
	r.RecordPositions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("AAPL", "BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.orders.WithLabelValues("BUY", "filled")))
	assert.Equal(t, 0.61, testutil.ToFloat64(r.sentiment.WithLabelValues("AAPL")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.positions))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, n)
}
