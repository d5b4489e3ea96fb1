package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"dropout-risk/internal/common"

	"github.com/rs/zerolog/log"
)

// LabelCodes maps the raw Status categories onto the binary target.
var LabelCodes = map[string]float64{
	common.StatusDropout:  1,
	common.StatusEnrolled: 0,
	common.StatusGraduate: 0,
}

// Clean drops duplicate rows, drops rows without a label and maps the label
// column onto 0/1. The result never has more rows than the input.
func Clean(t *Table, labelColumn string) (*Table, error) {
	if t == nil || t.Nrow() == 0 {
		return nil, ErrEmptyTable
	}
	if !t.HasColumn(labelColumn) {
		return nil, fmt.Errorf("%w: label %q", ErrMissingColumn, labelColumn)
	}

	before := t.Nrow()
	out := DropDuplicates(t)
	deduped := out.Nrow()

	out, err := DropMissing(out, labelColumn)
	if err != nil {
		return nil, err
	}
	labelled := out.Nrow()

	out, err = MapLabel(out, labelColumn)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("rows_in", before).
		Int("duplicates", before-deduped).
		Int("missing_label", deduped-labelled).
		Int("rows_out", out.Nrow()).
		Msg("Cleaned dataset")
	return out, nil
}

// DropDuplicates keeps the first occurrence of every distinct row. Two
// missing cells compare equal.
func DropDuplicates(t *Table) *Table {
	seen := make(map[string]struct{}, t.Nrow())
	keep := make([]int, 0, t.Nrow())
	var b strings.Builder
	for row := 0; row < t.Nrow(); row++ {
		b.Reset()
		for _, c := range t.cols {
			writeCellKey(&b, c, row)
		}
		key := b.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, row)
	}
	if len(keep) == t.Nrow() {
		return t
	}
	return t.Subset(keep)
}

func writeCellKey(b *strings.Builder, c *Column, row int) {
	switch {
	case c.IsMissing(row):
		b.WriteString("\x00")
	case c.Kind == Text:
		b.WriteString("s")
		b.WriteString(c.Strings[row])
	default:
		b.WriteString("f")
		b.WriteString(strconv.FormatFloat(c.Floats[row], 'g', -1, 64))
	}
	b.WriteByte(0x1f)
}

// DropMissing removes rows whose value in the named column is missing.
func DropMissing(t *Table, name string) (*Table, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	keep := make([]int, 0, t.Nrow())
	for row := 0; row < t.Nrow(); row++ {
		if c.IsMissing(row) {
			continue
		}
		if c.Kind == Text && strings.TrimSpace(c.Strings[row]) == "" {
			continue
		}
		keep = append(keep, row)
	}
	if len(keep) == t.Nrow() {
		return t, nil
	}
	return t.Subset(keep), nil
}

// MapLabel replaces the text label column with its numeric code from
// LabelCodes. A label already stored as 0/1 passes through; any other value
// fails with ErrUnknownLabel.
func MapLabel(t *Table, name string) (*Table, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}

	codes := make([]float64, c.Len())
	for row := range codes {
		if c.IsMissing(row) {
			return nil, fmt.Errorf("%w: missing value at row %d", ErrUnknownLabel, row)
		}
		if c.Kind == Numeric {
			v := c.Floats[row]
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("%w: %v at row %d", ErrUnknownLabel, v, row)
			}
			codes[row] = v
			continue
		}
		code, ok := LabelCodes[strings.TrimSpace(c.Strings[row])]
		if !ok {
			return nil, fmt.Errorf("%w: %q at row %d", ErrUnknownLabel, c.Strings[row], row)
		}
		codes[row] = code
	}
	return t.replace(NewNumericColumn(c.Name, codes)), nil
}

// Labels returns the label column as integer classes.
func Labels(t *Table, name string) ([]int, error) {
	values, err := t.Numeric(name)
	if err != nil {
		return nil, err
	}
	y := make([]int, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: missing value at row %d", ErrUnknownLabel, i)
		}
		y[i] = int(v)
	}
	return y, nil
}
