package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// CSVExporter writes a table as CSV
type CSVExporter struct {
	options CSVOptions
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter       rune
	UseCRLF         bool
	TimestampFormat string
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:       ',',
		TimestampFormat: time.RFC3339,
	}
}

func NewCSVExporter(options CSVOptions) *CSVExporter {
	return &CSVExporter{options: options}
}

func (e *CSVExporter) Write(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)
	writer.Comma = e.options.Delimiter
	writer.UseCRLF = e.options.UseCRLF

	if err := writer.Write(table.labels()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			record[i] = formatText(row[col.Key], e.options.TimestampFormat)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
