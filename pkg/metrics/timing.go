// Package metrics records how long settree spends loading definitions,
// re-filtering and rebuilding the tree, restoring expansion state, querying
// history and rendering. The numbers are printed on exit with --debug.
//
// Recording is on unless SETTREE_METRICS=0.
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("SETTREE_METRICS") != "0")
}

// SetEnabled turns recording on or off.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// TimingMetric accumulates durations for one named operation. It is safe
// for concurrent use.
type TimingMetric struct {
	name  string
	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
}

// Record adds one measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled.Load() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.total.Add(ns)
	for {
		old := m.max.Load()
		if ns <= old || m.max.CompareAndSwap(old, ns) {
			return
		}
	}
}

// TimingStats is a point-in-time view of a TimingMetric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// Stats reads the metric.
func (m *TimingMetric) Stats() TimingStats {
	count, total := m.count.Load(), m.total.Load()
	s := TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		MaxMs:   float64(m.max.Load()) / 1e6,
	}
	if count > 0 {
		s.AvgMs = s.TotalMs / float64(count)
	}
	return s
}

// Timer starts a measurement; call the result to record it.
//
//	defer metrics.Timer(metrics.Refilter)()
func Timer(m *TimingMetric) func() {
	if m == nil || !enabled.Load() {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

var registry []*TimingMetric

func register(name string) *TimingMetric {
	m := &TimingMetric{name: name}
	registry = append(registry, m)
	return m
}

// Operations measured by settree.
var (
	Load         = register("load")
	Refilter     = register("refilter")
	Restore      = register("restore")
	TreeRebuild  = register("tree_rebuild")
	HistoryQuery = register("history_query")
	UIRender     = register("ui_render")
)

// AllTimingStats returns the stats of every metric that recorded anything,
// in registration order.
func AllTimingStats() []TimingStats {
	var out []TimingStats
	for _, m := range registry {
		if s := m.Stats(); s.Count > 0 {
			out = append(out, s)
		}
	}
	return out
}
