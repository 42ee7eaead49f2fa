// Package validator inspects a fetched price series for data quality issues.
//
// Validation only reports: rows are never dropped or rewritten. The rolling
// metrics assume one row per calendar day in ascending order, so the checks
// focus on ordering, duplicates and missing days, plus OHLC consistency.
package validator

import (
	"context"
	"sort"
	"time"

	"github.com/johnayoung/go-ohlcv-extremes/internal/models"
)

// SeriesValidator validates a price series and reports anomalies.
type SeriesValidator interface {
	// Validate checks series against the expected spacing between rows.
	// The returned error is reserved for cancellation; data problems are
	// reported through the Report.
	Validate(ctx context.Context, series *models.PriceSeries, expectedInterval time.Duration) (*Report, error)
}

// Report is the outcome of validating one series.
type Report struct {
	Symbol      string               `json:"symbol"`
	Rows        int                  `json:"rows"`
	Anomalies   []models.Anomaly     `json:"anomalies"`
	MaxSeverity models.SeverityLevel `json:"max_severity,omitempty"`
	Duration    time.Duration        `json:"duration"`
}

// Clean reports whether no anomalies were found.
func (r *Report) Clean() bool {
	return len(r.Anomalies) == 0
}

// Add records an anomaly and escalates the report severity if needed.
func (r *Report) Add(a *models.Anomaly) {
	if a == nil {
		return
	}
	r.Anomalies = append(r.Anomalies, *a)
	if r.MaxSeverity == "" || models.ShouldEscalateSeverity(r.MaxSeverity, a.Severity) {
		r.MaxSeverity = a.Severity
	}
}

// CountByType tallies anomalies per type.
func (r *Report) CountByType() map[models.AnomalyType]int {
	counts := make(map[models.AnomalyType]int)
	for _, a := range r.Anomalies {
		counts[a.Type]++
	}
	return counts
}

// MissingRows sums the rows missing across all sequence gaps.
func (r *Report) MissingRows() int64 {
	var total int64
	for _, a := range r.Anomalies {
		if a.Type == models.AnomalyTypeSequenceGap {
			total += a.Value.IntPart()
		}
	}
	return total
}

// SortedTypes returns the anomaly types present, in name order.
func (r *Report) SortedTypes() []models.AnomalyType {
	counts := r.CountByType()
	types := make([]models.AnomalyType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
