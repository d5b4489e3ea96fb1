// Package dataset holds the tabular side of the training pipeline: loading raw
// student records from delimited text or spreadsheets, cleaning them, and
// preparing a fully numeric table for the trainer.
//
// A Table is column oriented. Numeric columns mark missing cells with NaN,
// text columns carry an explicit missing mask. Every operation keeps row order.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
)

var (
	ErrEmptyTable    = errors.New("dataset: table has no rows")
	ErrMissingColumn = errors.New("dataset: missing column")
	ErrUnknownLabel  = errors.New("dataset: unknown label value")
)

// Kind tells numeric columns from text columns.
type Kind int

const (
	Numeric Kind = iota
	Text
)

func (k Kind) String() string {
	if k == Text {
		return "text"
	}
	return "numeric"
}

// Column is a single named column of a Table.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64 // Numeric; NaN marks a missing cell
	Strings []string  // Text
	Missing []bool    // Text
}

// NewNumericColumn builds a numeric column. The slice is not copied.
func NewNumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Floats: values}
}

// NewTextColumn builds a text column. A nil missing mask means nothing is missing.
func NewTextColumn(name string, values []string, missing []bool) *Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return &Column{Name: name, Kind: Text, Strings: values, Missing: missing}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Text {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// IsMissing reports whether the cell at row is missing.
func (c *Column) IsMissing(row int) bool {
	if c.Kind == Text {
		return c.Missing[row]
	}
	return math.IsNaN(c.Floats[row])
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Text {
		out.Strings = make([]string, len(rows))
		out.Missing = make([]bool, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
			out.Missing[i] = c.Missing[r]
		}
		return out
	}
	out.Floats = make([]float64, len(rows))
	for i, r := range rows {
		out.Floats[i] = c.Floats[r]
	}
	return out
}

// Table is an ordered set of equally long named columns.
type Table struct {
	cols  []*Column
	index map[string]int
	nrow  int
}

// NewTable assembles columns into a table. Columns must have equal length and
// names that stay distinct after normalisation.
func NewTable(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			t.nrow = c.Len()
		} else if c.Len() != t.nrow {
			return nil, fmt.Errorf("dataset: column %q has %d rows, expected %d", c.Name, c.Len(), t.nrow)
		}
		key := NormalizeName(c.Name)
		if _, dup := t.index[key]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c.Name)
		}
		t.index[key] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// Nrow returns the number of rows.
func (t *Table) Nrow() int { return t.nrow }

// Ncol returns the number of columns.
func (t *Table) Ncol() int { return len(t.cols) }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in table order.
func (t *Table) Columns() []*Column { return t.cols }

// Column looks a column up by name. Lookup goes through NormalizeName, so
// "Curricular units 1st sem (grade)" and "Curricular_units_1st_sem_grade"
// resolve to the same column.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return t.cols[i], nil
}

// HasColumn reports whether a column resolves under name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[NormalizeName(name)]
	return ok
}

// Subset returns a new table holding the given rows, in the given order.
func (t *Table) Subset(rows []int) *Table {
	out := &Table{index: t.index, nrow: len(rows)}
	out.cols = make([]*Column, len(t.cols))
	for i, c := range t.cols {
		out.cols[i] = c.subset(rows)
	}
	return out
}

// replace swaps the column stored under the same name.
func (t *Table) replace(c *Column) *Table {
	out := &Table{index: t.index, nrow: t.nrow, cols: make([]*Column, len(t.cols))}
	copy(out.cols, t.cols)
	out.cols[t.index[NormalizeName(c.Name)]] = c
	return out
}

// Numeric returns the values of a numeric column.
func (t *Table) Numeric(name string) ([]float64, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, fmt.Errorf("dataset: column %q is %s, expected numeric", c.Name, c.Kind)
	}
	return c.Floats, nil
}

// NormalizeName maps a header to its lookup key: lower case, runs of
// non-alphanumerics collapsed to a single underscore, no edge underscores.
func NormalizeName(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
