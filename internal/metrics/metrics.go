// Package metrics collects counters, gauges and timings for a single
// pipeline run so they can be reported when the run ends.
package metrics

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector records run metrics. It is safe for concurrent use.
type Collector struct {
	mu        sync.RWMutex
	metrics   map[string]Metric
	startTime time.Time

	eventCount int64
	errorCount int64
}

// Metric represents a single metric with metadata
type Metric struct {
	Name        string            `json:"name"`
	Type        MetricType        `json:"type"`
	Value       float64           `json:"value"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// MetricType represents different types of metrics
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Snapshot is a point in time copy of every metric.
type Snapshot struct {
	Timestamp     time.Time         `json:"timestamp"`
	Uptime        time.Duration     `json:"uptime"`
	Metrics       map[string]Metric `json:"metrics"`
	SystemMetrics SystemMetrics     `json:"system_metrics"`
	EventCount    int64             `json:"event_count"`
	ErrorCount    int64             `json:"error_count"`
}

// SystemMetrics represents process level memory and scheduler figures.
type SystemMetrics struct {
	GoroutineCount int    `json:"goroutine_count"`
	NumGC          uint32 `json:"num_gc"`
	HeapAlloc      uint64 `json:"heap_alloc"`
	HeapInuse      uint64 `json:"heap_inuse"`
}

// NewCollector creates an empty collector whose uptime starts now.
func NewCollector() *Collector {
	return &Collector{
		metrics:   make(map[string]Metric),
		startTime: time.Now(),
	}
}

// RecordCounter increments a counter metric
func (c *Collector) RecordCounter(name, description string, labels map[string]string) {
	c.recordMetric(name, MetricTypeCounter, 1, description, labels)
	atomic.AddInt64(&c.eventCount, 1)
}

// RecordGauge sets a gauge metric value
func (c *Collector) RecordGauge(name string, value float64, description string, labels map[string]string) {
	c.recordMetric(name, MetricTypeGauge, value, description, labels)
}

// RecordError records an error metric
func (c *Collector) RecordError(name, description string, labels map[string]string) {
	c.recordMetric(name, MetricTypeCounter, 1, description, labels)
	atomic.AddInt64(&c.errorCount, 1)
}

// RecordDuration records a duration metric in milliseconds
func (c *Collector) RecordDuration(name string, duration time.Duration, description string, labels map[string]string) {
	ms := float64(duration.Nanoseconds()) / float64(time.Millisecond)
	c.recordMetric(name, MetricTypeHistogram, ms, description, labels)
}

func (c *Collector) recordMetric(name string, metricType MetricType, value float64, description string, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	existing, exists := c.metrics[name]
	if !exists {
		c.metrics[name] = Metric{
			Name:        name,
			Type:        metricType,
			Value:       value,
			Labels:      labels,
			Description: description,
			UpdatedAt:   now,
		}
		return
	}

	if metricType == MetricTypeCounter {
		existing.Value += value
	} else {
		existing.Value = value
	}
	existing.UpdatedAt = now
	c.metrics[name] = existing
}

// Value returns the current value of a metric and whether it exists.
func (c *Collector) Value(name string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[name]
	return m.Value, ok
}

// GetSnapshot returns a snapshot of all current metrics
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	metricsCopy := make(map[string]Metric, len(c.metrics))
	for k, v := range c.metrics {
		metricsCopy[k] = v
	}
	c.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Snapshot{
		Timestamp: time.Now(),
		Uptime:    time.Since(c.startTime),
		Metrics:   metricsCopy,
		SystemMetrics: SystemMetrics{
			GoroutineCount: runtime.NumGoroutine(),
			NumGC:          m.NumGC,
			HeapAlloc:      m.HeapAlloc,
			HeapInuse:      m.HeapInuse,
		},
		EventCount: atomic.LoadInt64(&c.eventCount),
		ErrorCount: atomic.LoadInt64(&c.errorCount),
	}
}

// LogAttrs flattens the snapshot into slog attributes, metrics in name order.
func (s Snapshot) LogAttrs() []any {
	names := make([]string, 0, len(s.Metrics))
	for name := range s.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]any, 0, len(names)+4)
	attrs = append(attrs,
		slog.Duration("uptime", s.Uptime),
		slog.Int64("errors", s.ErrorCount),
		slog.Uint64("heap_alloc", s.SystemMetrics.HeapAlloc),
		slog.Int("goroutines", s.SystemMetrics.GoroutineCount))
	for _, name := range names {
		attrs = append(attrs, slog.Float64(name, s.Metrics[name].Value))
	}
	return attrs
}
