package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes a single styled sheet
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	HeaderFill   string
	HeaderFont   string
	MinWidth     float64
	MaxWidth     float64
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Transactions",
		FreezeHeader: true,
		AutoFilter:   true,
		HeaderFill:   "4472C4",
		HeaderFont:   "FFFFFF",
		MinWidth:     10,
		MaxWidth:     50,
	}
}

func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", options.SheetName)

	return &ExcelExporter{
		file:    file,
		options: options,
	}
}

// Write renders the table and streams the workbook to w.
func (e *ExcelExporter) Write(w io.Writer, table Table) error {
	if err := e.writeHeader(table.labels()); err != nil {
		return err
	}
	if err := e.writeRows(table); err != nil {
		return err
	}
	if err := e.file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *ExcelExporter) writeHeader(labels []string) error {
	sheet := e.options.SheetName

	style, err := e.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: e.options.HeaderFont},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{e.options.HeaderFill}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    borders(),
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, label := range labels {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
		e.file.SetCellStyle(sheet, cell, cell, style)
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func (e *ExcelExporter) writeRows(table Table) error {
	sheet := e.options.SheetName

	dataStyle, err := e.file.NewStyle(&excelize.Style{Border: borders()})
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}
	dateStyle, err := e.file.NewStyle(&excelize.Style{Border: borders(), NumFmt: 22})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	widths := make([]float64, len(table.Columns))
	for i, c := range table.Columns {
		widths[i] = float64(utf8.RuneCountInString(c.Label))
	}

	for r, row := range table.Rows {
		for c, col := range table.Columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			val := row[col.Key]

			style := dataStyle
			switch v := val.(type) {
			case time.Time:
				style = dateStyle
				if err := e.file.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			default:
				text := formatText(v, time.RFC3339)
				if err := e.file.SetCellValue(sheet, cell, text); err != nil {
					return err
				}
				if w := float64(utf8.RuneCountInString(text)) * 1.2; w > widths[c] {
					widths[c] = w
				}
			}
			e.file.SetCellStyle(sheet, cell, cell, style)
		}
	}

	if e.options.AutoFilter && len(table.Rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), len(table.Rows)+1)
		if err := e.file.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}

	for i, w := range widths {
		if w < e.options.MinWidth {
			w = e.options.MinWidth
		}
		if w > e.options.MaxWidth {
			w = e.options.MaxWidth
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		e.file.SetColWidth(sheet, col, col, w)
	}
	return nil
}

// Close closes the Excel file
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func borders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}
