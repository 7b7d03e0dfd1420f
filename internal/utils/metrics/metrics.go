// internal/utils/metrics/metrics.go
package metrics

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/memecurve/internal/types"
)

// RecordOperation записывает результат операции с учетом контекста
func (c *Collector) RecordOperation(ctx context.Context, op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	select {
	case <-ctx.Done():
		c.operations.WithLabelValues(op, "cancelled").Inc()
		return
	default:
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	c.operations.WithLabelValues(op, status).Inc()
	c.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTrade учитывает объем и комиссию сделки
func (c *Collector) RecordTrade(side types.Side, base, fee *uint256.Int) {
	if c == nil {
		return
	}
	c.volume.WithLabelValues(string(side)).Add(toFloat(base))
	c.fees.Add(toFloat(fee))
}

// RecordGraduation учитывает выпуск кривой
func (c *Collector) RecordGraduation() {
	if c == nil {
		return
	}
	c.graduations.Inc()
}

// SetCurves обновляет число кривых
func (c *Collector) SetCurves(n uint64) {
	if c == nil {
		return
	}
	c.curves.Set(float64(n))
}

// SetReserve обновляет реальный резерв кривой
func (c *Collector) SetReserve(symbol string, reserve *uint256.Int) {
	if c == nil {
		return
	}
	c.reserve.WithLabelValues(symbol).Set(toFloat(reserve))
}

func toFloat(x *uint256.Int) float64 {
	return types.ToDecimal(x).InexactFloat64()
}
