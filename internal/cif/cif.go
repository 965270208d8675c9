// Package cif renders CIF loop_ tables and scalar values in the exact
// text layout the converter emits.
package cif

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Loop assembles one loop_ table for a single category. Rows are kept as
// strings; numeric formatting is the caller's business via Float, Float2
// and Int.
type Loop struct {
	category string
	fields   []string
	rows     [][]string
}

// NewLoop starts a table for category (including the leading underscore,
// e.g. "_axis") with the given field names.
func NewLoop(category string, fields ...string) *Loop {
	return &Loop{category: category, fields: fields}
}

// Add appends one data row. The row length is checked at rendering time.
func (l *Loop) Add(values ...string) {
	l.rows = append(l.rows, values)
}

// Comment appends a verbatim line, used for truncation markers. Comment
// rows are exempt from the row-length check.
func (l *Loop) Comment(text string) {
	l.rows = append(l.rows, []string{text})
}

// WriteTo renders the table: the loop_ keyword, one " _category.field"
// line per field, a blank line, the data rows indented by two spaces with
// tab-separated values, and a trailing blank line. Every data row must
// have exactly one value per field; single-element rows are comments and
// pass through unchanged.
func (l *Loop) WriteTo(w io.Writer) (int64, error) {
	for i, row := range l.rows {
		if len(row) != 1 && len(row) != len(l.fields) {
			return 0, fmt.Errorf("%s row %d has unexpected length (%d != %d)",
				l.category, i+1, len(row), len(l.fields))
		}
	}

	var b strings.Builder
	b.WriteString("loop_\n")
	for _, f := range l.fields {
		fmt.Fprintf(&b, " %s.%s\n", l.category, f)
	}
	b.WriteString("\n")
	for _, row := range l.rows {
		if len(row) == 1 {
			b.WriteString(row[0])
		} else {
			b.WriteString("  ")
			b.WriteString(strings.Join(row, "\t"))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Float formats v in fixed notation with the shortest digit string that
// round-trips, so values keep the precision they were rounded to without
// trailing zeros.
func Float(v float64) string {
	if v == 0 { // avoid "-0"
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Float2 formats v with exactly two decimal places, the convention for
// scan settings.
func Float2(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Int formats an integer value.
func Int(i int) string {
	return strconv.Itoa(i)
}
