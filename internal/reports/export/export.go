// Package export renders tabular report data and transfer certificates.
package export

import (
	"fmt"
	"time"
)

// Column describes one exported column.
type Column struct {
	Key   string
	Label string
}

// Table is a set of rows keyed by Column.Key.
type Table struct {
	Columns []Column
	Rows    []map[string]interface{}
}

func (t Table) labels() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
	}
	return out
}

// formatText renders a value for text formats. Nil pointers render empty.
func formatText(val interface{}, timeFormat string) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(timeFormat)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(timeFormat)
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case float64:
		return fmt.Sprintf("%.2f", v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
