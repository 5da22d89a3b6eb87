package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/linetrace/linelist-tracker/internal/entity"
)

// SheetName is the single fixed sheet every export carries.
const SheetName = "Line List"

// Service turns merged records into XLSX bytes for download.
type Service struct {
	logger *slog.Logger
}

// NewService creates an export service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportXLSX returns an XLSX workbook (as bytes) plus the filename it should
// be saved under. The filename embeds the record count and an ISO date stamp
// for traceability.
func (s *Service) ExportXLSX(records []entity.ExtractedRecord) ([]byte, string, error) {
	start := time.Now()

	rows, err := ToFlatRows(records)
	if err != nil {
		return nil, "", fmt.Errorf("normalize records: %w", err)
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, "", err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", err
	}
	index, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(index)

	for r, row := range rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(SheetName, cell, value)
		}
	}

	for i, width := range ColumnWidths() {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, col, col, width)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("xlsx write: %w", err)
	}

	filename := Filename(len(records), time.Now().UTC())
	s.logger.Info("export.xlsx.ok",
		"rows", len(records),
		"filename", filename,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), filename, nil
}

// Filename builds the export filename for a record count and date.
func Filename(recordCount int, at time.Time) string {
	return fmt.Sprintf("line-list_%d-records_%s.xlsx", recordCount, at.Format("2006-01-02"))
}
