// internal/utils/metrics/collector.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricType представляет тип метрики
type MetricType string

const (
	OperationCounterType  MetricType = "operation_counter"
	OperationDurationType MetricType = "operation_duration"
	VolumeType            MetricType = "volume"
	FeesType              MetricType = "fees"
	GraduationsType       MetricType = "graduations"
	CurvesType            MetricType = "curves"
	ReserveType           MetricType = "reserve"
)

const namespace = "memecurve"

// Collector управляет набором метрик движка
type Collector struct {
	metrics sync.Map

	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	volume      *prometheus.CounterVec
	fees        prometheus.Counter
	graduations prometheus.Counter
	curves      prometheus.Gauge
	reserve     *prometheus.GaugeVec
}

// NewCollector создает коллектор и регистрирует метрики в reg.
// nil reg означает prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of engine operations by outcome",
			},
			[]string{"op", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"op"},
		),
		volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "volume_base_total",
				Help:      "Base asset traded through curves",
			},
			[]string{"side"},
		),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_base_total",
			Help:      "Trading fees accrued in base asset",
		}),
		graduations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graduations_total",
			Help:      "Curves that sold their whole supply",
		}),
		curves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "curves",
			Help:      "Number of registered curves",
		}),
		reserve: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "base_reserve_real",
				Help:      "Real base reserve per curve",
			},
			[]string{"symbol"},
		),
	}

	metricsMap := map[MetricType]prometheus.Collector{
		OperationCounterType:  c.operations,
		OperationDurationType: c.duration,
		VolumeType:            c.volume,
		FeesType:              c.fees,
		GraduationsType:       c.graduations,
		CurvesType:            c.curves,
		ReserveType:           c.reserve,
	}
	for metricType, metric := range metricsMap {
		if err := reg.Register(metric); err != nil {
			return nil, err
		}
		c.metrics.Store(metricType, metric)
	}
	return c, nil
}

// Reset сбрасывает векторные метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}
