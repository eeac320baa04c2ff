package fit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrEmptyDataset is returned when a dataset has no samples
var ErrEmptyDataset = errors.New("fit: dataset has no samples")

// LoadCSVFile reads a numeric CSV dataset from path
func LoadCSVFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	data, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r, c := data.Dims()
	slog.Info("Loaded dataset", "path", path, "samples", r, "features", c)
	return data, nil
}

// LoadCSV parses samples x features from CSV. A first row that does not
// parse as numbers is treated as a header. Blank lines are skipped.
func LoadCSV(r io.Reader) (*mat.Dense, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var values []float64
	width := -1
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line++

		row, perr := parseRow(record)
		if perr != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, perr)
		}
		if width == -1 {
			width = len(row)
		} else if len(row) != width {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, width, len(row))
		}
		values = append(values, row...)
	}

	if width <= 0 || len(values) == 0 {
		return nil, ErrEmptyDataset
	}
	return mat.NewDense(len(values)/width, width, values), nil
}

func parseRow(record []string) ([]float64, error) {
	row := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		row[i] = v
	}
	return row, nil
}
