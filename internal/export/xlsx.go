package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
)

const (
	// SheetName is the single worksheet written to every workbook.
	SheetName = "Sheet1"

	// DateNumFmt is the number format applied to the Date column.
	DateNumFmt = "yyyy-mm-dd hh:mm:ss"

	dateColWidth  = 20
	valueColWidth = 16
)

// XLSXExporter writes tables as Excel workbooks.
type XLSXExporter struct {
	logger *slog.Logger
}

// NewXLSXExporter creates an XLSX exporter.
func NewXLSXExporter(logger *slog.Logger) *XLSXExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXExporter{logger: logger}
}

// Format implements Exporter.
func (e *XLSXExporter) Format() string { return FormatXLSX }

// Export implements Exporter. Rows are streamed to a single sheet below a
// header row; nil values leave the cell blank.
func (e *XLSXExporter) Export(ctx context.Context, t Tabular, path string) error {
	const op = "export_xlsx"

	if err := checkTable(t); err != nil {
		return apperrors.NewExportError(op, err)
	}
	if err := prepareDir(path); err != nil {
		return apperrors.NewExportError(op, fmt.Errorf("create output directory: %w", err))
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("failed to close workbook", "path", path, "error", err)
		}
	}()

	dateFmt := DateNumFmt
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return apperrors.NewExportError(op, fmt.Errorf("create date style: %w", err))
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return apperrors.NewExportError(op, fmt.Errorf("open stream writer: %w", err))
	}

	header := t.Header()
	if err := sw.SetColWidth(1, 1, dateColWidth); err != nil {
		return apperrors.NewExportError(op, err)
	}
	if len(header) > 1 {
		if err := sw.SetColWidth(2, len(header), valueColWidth); err != nil {
			return apperrors.NewExportError(op, err)
		}
	}

	headerRow := make([]any, len(header))
	for i, name := range header {
		headerRow[i] = name
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return apperrors.NewExportError(op, fmt.Errorf("write header: %w", err))
	}

	for i := 0; i < t.Len(); i++ {
		if i%1000 == 0 {
			select {
			case <-ctx.Done():
				return apperrors.NewExportError(op, ctx.Err())
			default:
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.NewExportError(op, err)
		}

		values := t.Row(i)
		row := make([]any, len(values))
		for j, v := range values {
			if ts, ok := v.(time.Time); ok {
				row[j] = excelize.Cell{StyleID: dateStyle, Value: ts}
				continue
			}
			row[j] = v
		}

		if err := sw.SetRow(cell, row); err != nil {
			return apperrors.NewExportError(op, fmt.Errorf("write row %d: %w", i+1, err))
		}
	}

	if err := sw.Flush(); err != nil {
		return apperrors.NewExportError(op, fmt.Errorf("flush sheet: %w", err))
	}
	if err := f.SaveAs(path); err != nil {
		return apperrors.NewExportError(op, fmt.Errorf("save workbook: %w", err))
	}

	e.logger.Debug("workbook written", "path", path, "rows", t.Len(), "columns", len(header))
	return nil
}
