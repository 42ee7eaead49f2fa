package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
)

// CSVExporter writes tables as comma separated text.
type CSVExporter struct {
	logger *slog.Logger
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(logger *slog.Logger) *CSVExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVExporter{logger: logger}
}

// Format implements Exporter.
func (e *CSVExporter) Format() string { return FormatCSV }

// Export implements Exporter.
func (e *CSVExporter) Export(ctx context.Context, t Tabular, path string) (err error) {
	const op = "export_csv"

	if err := checkTable(t); err != nil {
		return apperrors.NewExportError(op, err)
	}
	if err := prepareDir(path); err != nil {
		return apperrors.NewExportError(op, fmt.Errorf("create output directory: %w", err))
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewExportError(op, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = apperrors.NewExportError(op, cerr)
		}
	}()

	w := csv.NewWriter(file)
	if err := w.Write(t.Header()); err != nil {
		return apperrors.NewExportError(op, err)
	}

	record := make([]string, len(t.Header()))
	for i := 0; i < t.Len(); i++ {
		if i%1000 == 0 {
			select {
			case <-ctx.Done():
				return apperrors.NewExportError(op, ctx.Err())
			default:
			}
		}

		values := t.Row(i)
		for j := range record {
			record[j] = ""
			if j < len(values) {
				record[j] = formatValue(values[j])
			}
		}
		if err := w.Write(record); err != nil {
			return apperrors.NewExportError(op, fmt.Errorf("write row %d: %w", i+1, err))
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.NewExportError(op, err)
	}

	e.logger.Debug("csv written", "path", path, "rows", t.Len())
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.Format(DateLayout)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
