package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	Delimiter  rune     // 0 = ','
	NullValues []string // cells treated as missing in addition to ""
}

var defaultNulls = []string{"NA", "N/A", "NaN", "nan", "null", "NULL"}

// ReadCSV loads a Frame from CSV with a header row. A column is numeric when
// every non-null cell parses as a float, otherwise categorical.
func ReadCSV(r io.Reader, opt CSVOptions) (*Frame, error) {
	cr := csv.NewReader(r)
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	nulls := make(map[string]struct{}, len(defaultNulls)+len(opt.NullValues))
	for _, n := range append(defaultNulls, opt.NullValues...) {
		nulls[n] = struct{}{}
	}

	cells := make([][]string, len(header))
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		if len(rec) != len(header) {
			return nil, errors.NewDimensionError("ReadCSV", len(header), len(rec), 1)
		}
		for j, v := range rec {
			v = strings.TrimSpace(v)
			if _, isNull := nulls[v]; isNull {
				v = ""
			}
			cells[j] = append(cells[j], v)
		}
	}

	cols := make([]*Column, len(header))
	for j, name := range header {
		cols[j] = inferColumn(strings.TrimSpace(name), cells[j])
	}
	return NewFrame(cols...)
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, opt CSVOptions) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadCSV(f, opt)
}

func inferColumn(name string, values []string) *Column {
	floats := make([]float64, len(values))
	for i, v := range values {
		if v == "" {
			floats[i] = math.NaN()
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return CategoricalColumn(name, values)
		}
		floats[i] = x
	}
	return &Column{Name: name, Type: ColNumeric, Floats: floats}
}
