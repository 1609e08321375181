package report

import (
	"fmt"
	"strconv"

	"telegramformbot/pkg/config"
	"telegramformbot/pkg/storage"

	"github.com/xuri/excelize/v2"
)

// Renderer turns the current result set into a downloadable document.
// Implementations must not depend on the input order for correctness.
type Renderer interface {
	Render(responses []storage.Response) ([]byte, error)
	Filename() string
}

// ExcelRenderer produces an xlsx workbook with a title row, a header row and
// one row per response.
type ExcelRenderer struct {
	filename   string
	sheetTitle string
}

var _ Renderer = (*ExcelRenderer)(nil)

func NewExcelRenderer(cfg config.ReportConfig) *ExcelRenderer {
	return &ExcelRenderer{
		filename:   cfg.Filename,
		sheetTitle: cfg.SheetTitle,
	}
}

func (r *ExcelRenderer) Filename() string {
	return r.filename
}

func (r *ExcelRenderer) Render(responses []storage.Response) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)

	if err := f.SetCellValue(sheet, "A1", r.sheetTitle); err != nil {
		return nil, fmt.Errorf("failed to write report title: %w", err)
	}

	headers := []string{"Name", "Email", "Score"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write report header: %w", err)
		}
	}

	for i, response := range responses {
		row := strconv.Itoa(i + 3)
		if err := f.SetCellValue(sheet, "A"+row, response.Name); err != nil {
			return nil, fmt.Errorf("failed to write response row %d: %w", i, err)
		}
		if err := f.SetCellValue(sheet, "B"+row, response.Email); err != nil {
			return nil, fmt.Errorf("failed to write response row %d: %w", i, err)
		}
		if err := f.SetCellValue(sheet, "C"+row, response.Score); err != nil {
			return nil, fmt.Errorf("failed to write response row %d: %w", i, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report workbook: %w", err)
	}
	return buf.Bytes(), nil
}
