package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memecurve/internal/types"
)

func TestCollectorRecords(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	c.RecordOperation(context.Background(), "buy", time.Millisecond, nil)
	c.RecordOperation(context.Background(), "buy", time.Millisecond, errors.New("slippage"))
	c.RecordTrade(types.SideBuy, types.MustParseUnits("1.5"), types.MustParseUnits("0.015"))
	c.RecordGraduation()
	c.SetCurves(3)
	c.SetReserve("MEME", types.Units(7))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("buy", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("buy", "failed")))
	assert.InDelta(t, 1.5, testutil.ToFloat64(c.volume.WithLabelValues("buy")), 1e-9)
	assert.InDelta(t, 0.015, testutil.ToFloat64(c.fees), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.graduations))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.curves))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.reserve.WithLabelValues("MEME")))
}

func TestCancelledOperation(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.RecordOperation(ctx, "sell", time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("sell", "cancelled")))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)
	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordOperation(context.Background(), "buy", time.Second, nil)
		c.RecordTrade(types.SideSell, types.Units(1), types.Zero())
		c.RecordGraduation()
	})
}
