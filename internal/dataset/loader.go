package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Semicolon is the field separator of the delimited-text exports.
const Semicolon = ';'

// Cells spelled like this are treated as missing.
var missingMarkers = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL"}

// Load reads a raw student table. Paths ending in .csv are parsed as
// semicolon-delimited text; anything else is opened as a spreadsheet and its
// first sheet is read.
func Load(path string) (*Table, error) {
	var (
		df  dataframe.DataFrame
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		df, err = readDelimited(path)
	} else {
		df, err = readSpreadsheet(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	t, err := fromDataFrame(df)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("rows", t.Nrow()).
		Int("cols", t.Ncol()).
		Msg("Loaded dataset")
	return t, nil
}

// ReadCSV parses semicolon-delimited text from r.
func ReadCSV(r io.Reader) (*Table, error) {
	df := dataframe.ReadCSV(r, loadOptions(dataframe.WithDelimiter(Semicolon))...)
	if df.Err != nil {
		return nil, df.Err
	}
	return fromDataFrame(df)
}

func readDelimited(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, loadOptions(dataframe.WithDelimiter(Semicolon))...)
	return df, df.Err
}

func readSpreadsheet(path string) (dataframe.DataFrame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	records, err := padRecords(rows)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.LoadRecords(records, loadOptions()...)
	return df, df.Err
}

// padRecords squares up spreadsheet rows, which omit trailing empty cells.
func padRecords(rows [][]string) ([][]string, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}
	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("header row is empty")
	}
	records := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) > width {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", i+1, len(row), width)
		}
		rec := make([]string, width)
		copy(rec, row)
		records[i] = rec
	}
	return records, nil
}

func loadOptions(extra ...dataframe.LoadOption) []dataframe.LoadOption {
	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(missingMarkers),
	}
	return append(opts, extra...)
}

func fromDataFrame(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	if df.Nrow() == 0 {
		return nil, ErrEmptyTable
	}

	names := df.Names()
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		s := df.Col(name)
		if s.Err != nil {
			return nil, fmt.Errorf("column %q: %w", name, s.Err)
		}
		switch s.Type() {
		case series.String:
			values := s.Records()
			missing := s.IsNaN()
			for i := range values {
				if missing[i] {
					values[i] = ""
				}
			}
			cols = append(cols, NewTextColumn(name, values, missing))
		default:
			cols = append(cols, NewNumericColumn(name, s.Float()))
		}
	}
	return NewTable(cols...)
}
