package export

import (
	"fmt"
	"io"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/timeline"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the worksheet holding the day view
const SheetName = "Timeline"

const headerRow = 5

var columns = []string{
	"Start", "End", "Title", "Category", "Status",
	"Checklist", "Attachments", "Column", "Left %", "Width %",
}

// XLSXExporter renders a staff member's day as a spreadsheet
type XLSXExporter struct {
	logger *zap.Logger
}

var _ port.TimelineExporter = (*XLSXExporter)(nil)

// NewXLSXExporter creates a new XLSXExporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// WriteDay writes the report as an xlsx workbook to w
func (e *XLSXExporter) WriteDay(w io.Writer, report *port.DayReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	e.setRow(f, 1, []interface{}{"Staff", report.Staff.Name})
	e.setRow(f, 2, []interface{}{"Department", report.Staff.Department})
	e.setRow(f, 3, []interface{}{"Date", entity.FormatDate(report.Date)})

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	e.setRow(f, headerRow, header)

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), headerRow)
		_ = f.SetCellStyle(SheetName, fmt.Sprintf("A%d", headerRow), last, style)
	}
	_ = f.SetColWidth(SheetName, "C", "C", 40)

	placements := placementIndex(report.Layout)
	for i, task := range report.Tasks {
		row := []interface{}{
			task.StartTime.String(),
			task.EndTime.String(),
			task.Title,
			string(task.Category),
			task.Status.String(),
			fmt.Sprintf("%d/%d", task.Progress.Done, task.Progress.Total),
			task.Attachments,
		}
		if p, ok := placements[task.ID]; ok {
			row = append(row, p.Column, p.LeftPct, p.WidthPct)
		} else {
			row = append(row, "not placed")
		}
		e.setRow(f, headerRow+1+i, row)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *XLSXExporter) setRow(f *excelize.File, row int, values []interface{}) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		e.logger.Warn("Failed to set row", zap.Int("row", row), zap.Error(err))
	}
}

func placementIndex(layout *timeline.Layout) map[int64]timeline.Placement {
	index := make(map[int64]timeline.Placement)
	if layout == nil {
		return index
	}
	for _, p := range layout.Placements {
		index[p.TaskID] = p
	}
	return index
}
