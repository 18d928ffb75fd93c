package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DBPoolStats is a point-in-time sample of the connection pool. Copying
// through a plain struct keeps this package free of a pgxpool import.
type DBPoolStats struct {
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	MaxConns      int32

	// Lifetime counters carried by the pool since process start.
	AcquireCount      int64
	EmptyAcquireCount int64
	AcquireDuration   time.Duration
}

// DBPoolStatFunc samples the pool on every scrape.
type DBPoolStatFunc func() DBPoolStats

type dbPoolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(DBPoolStats) float64
}

type dbPoolCollector struct {
	stats   DBPoolStatFunc
	metrics []dbPoolMetric
}

// NewDBPoolCollector exposes pool occupancy gauges plus acquire counters,
// so pool saturation shows up as wait time before it shows up as errors.
func NewDBPoolCollector(stats DBPoolStatFunc) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("huddle_db_pool_"+name, help, nil, nil)
	}
	return &dbPoolCollector{
		stats: stats,
		metrics: []dbPoolMetric{
			{desc("total_conns", "Connections currently held by the pool."),
				prometheus.GaugeValue, func(s DBPoolStats) float64 { return float64(s.TotalConns) }},
			{desc("idle_conns", "Idle connections ready for checkout."),
				prometheus.GaugeValue, func(s DBPoolStats) float64 { return float64(s.IdleConns) }},
			{desc("acquired_conns", "Connections checked out right now."),
				prometheus.GaugeValue, func(s DBPoolStats) float64 { return float64(s.AcquiredConns) }},
			{desc("max_conns", "Configured pool ceiling."),
				prometheus.GaugeValue, func(s DBPoolStats) float64 { return float64(s.MaxConns) }},
			{desc("acquires_total", "Successful connection acquires."),
				prometheus.CounterValue, func(s DBPoolStats) float64 { return float64(s.AcquireCount) }},
			{desc("empty_acquires_total", "Acquires that had to wait for a free connection."),
				prometheus.CounterValue, func(s DBPoolStats) float64 { return float64(s.EmptyAcquireCount) }},
			{desc("acquire_wait_seconds_total", "Cumulative time spent waiting in acquire."),
				prometheus.CounterValue, func(s DBPoolStats) float64 { return s.AcquireDuration.Seconds() }},
		},
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
}
