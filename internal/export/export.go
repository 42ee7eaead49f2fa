// Package export writes a calculated metrics table to a file on disk.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
)

// Supported output formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// DateLayout is the textual form of the Date column in text based formats.
const DateLayout = "2006-01-02 15:04:05"

// Tabular is a rectangular table with a header row.
// Row values are time.Time, float64, int64 or nil for an empty cell.
type Tabular interface {
	// Header returns the column names in output order.
	Header() []string

	// Len returns the number of data rows, excluding the header.
	Len() int

	// Row returns the values of data row i. The slice has one entry per
	// header column.
	Row(i int) []any
}

// Exporter writes a table to a file.
type Exporter interface {
	// Export writes t to path, replacing any existing file.
	// Failures are reported as export errors.
	Export(ctx context.Context, t Tabular, path string) error

	// Format returns the file format this exporter produces.
	Format() string
}

// New returns the exporter for format.
func New(format string, logger *slog.Logger) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatXLSX, "":
		return NewXLSXExporter(logger), nil
	case FormatCSV:
		return NewCSVExporter(logger), nil
	default:
		return nil, apperrors.InvalidInputf("new_exporter", "unsupported export format %q", format)
	}
}

// OutputFilename builds the default output file name for a pair, e.g.
// "BTC/USDT" becomes "BTC_USDT_Historical_Data.xlsx".
func OutputFilename(pair, format string) string {
	ext := strings.ToLower(strings.TrimSpace(format))
	if ext == "" {
		ext = FormatXLSX
	}
	name := strings.ReplaceAll(strings.TrimSpace(pair), "/", "_")
	return fmt.Sprintf("%s_Historical_Data.%s", name, ext)
}

func prepareDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func checkTable(t Tabular) error {
	if t == nil {
		return fmt.Errorf("nil table")
	}
	if len(t.Header()) == 0 {
		return fmt.Errorf("table has no columns")
	}
	return nil
}
