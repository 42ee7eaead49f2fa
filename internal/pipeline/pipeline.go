// Package pipeline runs one fetch, validate, calculate and export pass for a
// trading pair.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
	"github.com/johnayoung/go-ohlcv-extremes/internal/exchange"
	"github.com/johnayoung/go-ohlcv-extremes/internal/export"
	"github.com/johnayoung/go-ohlcv-extremes/internal/extremes"
	"github.com/johnayoung/go-ohlcv-extremes/internal/logger"
	"github.com/johnayoung/go-ohlcv-extremes/internal/metrics"
	"github.com/johnayoung/go-ohlcv-extremes/internal/models"
	"github.com/johnayoung/go-ohlcv-extremes/internal/validator"
)

// maxLoggedAnomalies bounds the per-anomaly warnings written for one run.
const maxLoggedAnomalies = 20

// Stage identifies a completed pipeline step.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageValidate  Stage = "validate"
	StageCalculate Stage = "calculate"
	StageExport    Stage = "export"
)

// Request describes one run.
type Request struct {
	Pair    string
	Start   time.Time
	Windows extremes.Windows
	Output  string
}

// Result reports what a run produced.
type Result struct {
	Symbol  string
	Rows    int
	Path    string
	Report  *validator.Report
	Summary extremes.Summary
}

// Runner wires the pipeline stages together.
type Runner struct {
	fetcher   exchange.CandleFetcher
	validator validator.SeriesValidator
	exporter  export.Exporter
	logger    *logger.ComponentLogger
	metrics   *metrics.Collector

	now     func() time.Time
	onStage func(Stage)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock sets the clock used for the end of the fetch range.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithStageHook registers fn to be called after each stage succeeds.
func WithStageHook(fn func(Stage)) Option {
	return func(r *Runner) { r.onStage = fn }
}

// WithMetrics records stage timings and counts into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// NewRunner creates a runner. A nil validator skips the validation stage.
func NewRunner(fetcher exchange.CandleFetcher, v validator.SeriesValidator, exporter export.Exporter, log *logger.ComponentLogger, opts ...Option) *Runner {
	r := &Runner{
		fetcher:   fetcher,
		validator: v,
		exporter:  exporter,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.NewCollector()
	}
	return r
}

// Metrics returns the collector the runner records into.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// Run executes every stage in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Output) == "" {
		return nil, apperrors.InvalidInputf("pipeline_run", "output path is required")
	}
	if err := req.Windows.Validate(); err != nil {
		return nil, err
	}

	ctx = logger.WithPair(ctx, req.Pair)
	if logger.GetTraceID(ctx) == "" {
		ctx = logger.NewRunContext(ctx)
	}

	result := &Result{Path: req.Output}

	var series *models.PriceSeries
	err := r.stage(ctx, StageFetch, func() error {
		var err error
		series, err = exchange.FetchSeries(ctx, r.fetcher, req.Pair, req.Start.UTC(), r.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Symbol = series.Symbol
	result.Rows = series.Len()
	r.metrics.RecordGauge("candles_fetched", float64(series.Len()), "Daily candles returned by the exchange", nil)
	r.stageDone(StageFetch)

	if series.Len() == 0 {
		r.logger.WarnWithContext(ctx, "exchange returned no candles, exporting header only",
			slog.String("symbol", series.Symbol),
			slog.Time("start", req.Start))
	}

	if r.validator != nil {
		interval, _ := exchange.IntervalDuration(series.Interval)
		report, err := r.validator.Validate(ctx, series, interval)
		if err != nil {
			r.metrics.RecordError("pipeline_errors", "Failed pipeline stages", map[string]string{"stage": string(StageValidate)})
			return nil, err
		}
		result.Report = report
		r.metrics.RecordGauge("anomalies_detected", float64(len(report.Anomalies)), "Data quality anomalies in the series", nil)
		r.logReport(ctx, report)
		r.stageDone(StageValidate)
	}

	var table *extremes.Table
	err = r.stage(ctx, StageCalculate, func() error {
		var err error
		table, err = extremes.Calculate(series, req.Windows)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Summary = extremes.Summarize(table)
	r.logger.InfoWithContext(ctx, "metrics summary", result.Summary.LogAttrs()...)
	r.stageDone(StageCalculate)

	err = r.stage(ctx, StageExport, func() error {
		return r.exporter.Export(ctx, table, req.Output)
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RecordGauge("rows_exported", float64(table.Len()), "Rows written to the output file", nil)
	r.stageDone(StageExport)

	return result, nil
}

// stage runs fn under the component logger and records its duration.
func (r *Runner) stage(ctx context.Context, s Stage, fn func() error) error {
	start := time.Now()
	err := r.logger.LogOperation(ctx, string(s), fn)
	r.metrics.RecordDuration(string(s)+"_duration_ms", time.Since(start), "Stage wall time", nil)
	if err != nil {
		r.metrics.RecordError("pipeline_errors", "Failed pipeline stages", map[string]string{"stage": string(s)})
	}
	return err
}

func (r *Runner) stageDone(s Stage) {
	if r.onStage != nil {
		r.onStage(s)
	}
}

func (r *Runner) logReport(ctx context.Context, report *validator.Report) {
	if report.Clean() {
		return
	}

	for i, a := range report.Anomalies {
		if i == maxLoggedAnomalies {
			break
		}
		r.logger.WarnWithContext(ctx, "price series anomaly",
			slog.String("type", string(a.Type)),
			slog.String("severity", string(a.Severity)),
			slog.Time("date", a.Date),
			slog.String("description", a.Description))
	}

	args := []any{
		slog.Int("anomalies", len(report.Anomalies)),
		slog.String("max_severity", string(report.MaxSeverity)),
		slog.Int64("missing_rows", report.MissingRows()),
	}
	counts := report.CountByType()
	for _, t := range report.SortedTypes() {
		args = append(args, slog.Int(string(t), counts[t]))
	}
	r.logger.WarnWithContext(ctx, "price series has data quality issues", args...)
}
