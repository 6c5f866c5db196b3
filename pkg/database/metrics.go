package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is the part of *pgxpool.Stat the collector exports.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
	AcquireCount() int64
	AcquireDuration() time.Duration
	EmptyAcquireCount() int64
	CanceledAcquireCount() int64
}

type poolMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(PoolStats) float64
}

// PoolCollector exports connection pool statistics on every scrape.
type PoolCollector struct {
	stats   func() PoolStats
	service string
	metrics []poolMetric
}

// NewPoolCollector builds a collector that reads stats on each Collect.
func NewPoolCollector(stats func() PoolStats, service string) *PoolCollector {
	def := func(name, help string, vt prometheus.ValueType, value func(PoolStats) float64) poolMetric {
		return poolMetric{
			desc:      prometheus.NewDesc(prometheus.BuildFQName("db", "pool", name), help, []string{"service"}, nil),
			valueType: vt,
			value:     value,
		}
	}

	return &PoolCollector{
		stats:   stats,
		service: service,
		metrics: []poolMetric{
			def("acquired_connections", "Connections currently checked out of the pool.", prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.AcquiredConns()) }),
			def("idle_connections", "Idle connections held by the pool.", prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.IdleConns()) }),
			def("total_connections", "Open connections, idle or acquired.", prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.TotalConns()) }),
			def("max_connections", "Configured pool size.", prometheus.GaugeValue,
				func(s PoolStats) float64 { return float64(s.MaxConns()) }),
			def("acquires_total", "Successful connection acquires.", prometheus.CounterValue,
				func(s PoolStats) float64 { return float64(s.AcquireCount()) }),
			def("acquire_wait_seconds_total", "Time spent waiting to acquire a connection.", prometheus.CounterValue,
				func(s PoolStats) float64 { return s.AcquireDuration().Seconds() }),
			def("empty_acquires_total", "Acquires that had to wait because the pool was empty.", prometheus.CounterValue,
				func(s PoolStats) float64 { return float64(s.EmptyAcquireCount()) }),
			def("canceled_acquires_total", "Acquires abandoned because the context ended.", prometheus.CounterValue,
				func(s PoolStats) float64 { return float64(s.CanceledAcquireCount()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(s), c.service)
	}
}

// RegisterPoolMetrics registers a collector for pool with reg, or with the
// default registry when reg is nil.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(NewPoolCollector(func() PoolStats { return pool.Stat() }, service))
}
