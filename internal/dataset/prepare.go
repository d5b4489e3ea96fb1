package dataset

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// MissingText is the category a missing text cell is encoded as.
const MissingText = "nan"

// Preparation records what Prepare fitted on a table.
type Preparation struct {
	Medians    map[string]float64  `json:"medians"`
	Categories map[string][]string `json:"categories"` // code i is Categories[col][i]
}

// Prepare returns a fully numeric table: numeric gaps are filled with the
// column median and text columns are label-encoded, codes assigned in sorted
// order of the distinct values.
func Prepare(t *Table) (*Table, *Preparation, error) {
	if t == nil || t.Nrow() == 0 {
		return nil, nil, ErrEmptyTable
	}

	prep := &Preparation{
		Medians:    make(map[string]float64),
		Categories: make(map[string][]string),
	}
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		if c.Kind == Text {
			encoded, categories := encodeText(c)
			prep.Categories[c.Name] = categories
			cols[i] = encoded
			continue
		}
		filled, median, gaps := fillMedian(c)
		if gaps > 0 {
			prep.Medians[c.Name] = median
			log.Debug().Str("column", c.Name).Int("filled", gaps).Float64("median", median).Msg("Imputed missing values")
		}
		cols[i] = filled
	}

	out, err := NewTable(cols...)
	if err != nil {
		return nil, nil, err
	}
	return out, prep, nil
}

// Median returns the median of the non-NaN values, averaging the two middle
// values for even counts. It returns 0 when every value is NaN.
func Median(values []float64) float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return 0
	}
	sort.Float64s(present)
	mid := len(present) / 2
	if len(present)%2 == 1 {
		return present[mid]
	}
	return (present[mid-1] + present[mid]) / 2
}

func fillMedian(c *Column) (*Column, float64, int) {
	median := Median(c.Floats)
	out := make([]float64, len(c.Floats))
	gaps := 0
	for i, v := range c.Floats {
		if math.IsNaN(v) {
			out[i] = median
			gaps++
			continue
		}
		out[i] = v
	}
	return NewNumericColumn(c.Name, out), median, gaps
}

func encodeText(c *Column) (*Column, []string) {
	values := make([]string, len(c.Strings))
	distinct := make(map[string]struct{})
	for i, s := range c.Strings {
		if c.Missing[i] {
			s = MissingText
		}
		values[i] = s
		distinct[s] = struct{}{}
	}

	categories := make([]string, 0, len(distinct))
	for s := range distinct {
		categories = append(categories, s)
	}
	sort.Strings(categories)

	codes := make(map[string]float64, len(categories))
	for i, s := range categories {
		codes[s] = float64(i)
	}
	out := make([]float64, len(values))
	for i, s := range values {
		out[i] = codes[s]
	}
	return NewNumericColumn(c.Name, out), categories
}
