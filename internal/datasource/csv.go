package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/affiliate-performance/internal/model"
)

// Required header columns for an affiliate activity table.
var requiredColumns = []string{"affiliate_id", "name", "conversions", "revenue", "avg_order_value"}

// CSVSource loads affiliate records from a header-named delimited file,
// one row per affiliate.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source reading from the given file path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Load reads and parses the file. A missing file, a missing required column
// or an unparseable cell yields a DataSourceError.
func (s *CSVSource) Load(ctx context.Context) ([]model.AffiliateRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &DataSourceError{Source: s.path, Err: err}
	}
	defer f.Close()

	records, err := ParseRecords(f)
	if err != nil {
		return nil, &DataSourceError{Source: s.path, Err: err}
	}

	logrus.Debugf("Loaded %d affiliate records from %s", len(records), s.path)
	return records, nil
}

// ParseRecords decodes affiliate records from CSV content. The header row is
// mapped by name, so column order in the file does not matter.
func ParseRecords(r io.Reader) ([]model.AffiliateRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty table: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var records []model.AffiliateRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", line, err)
		}
		line++

		conversions, err := strconv.Atoi(row[index["conversions"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid conversions value %q", line, row[index["conversions"]])
		}
		revenue, err := strconv.ParseFloat(row[index["revenue"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid revenue value %q", line, row[index["revenue"]])
		}
		aov, err := strconv.ParseFloat(row[index["avg_order_value"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid avg_order_value value %q", line, row[index["avg_order_value"]])
		}

		records = append(records, model.AffiliateRecord{
			AffiliateID:   row[index["affiliate_id"]],
			Name:          row[index["name"]],
			Conversions:   conversions,
			Revenue:       revenue,
			AvgOrderValue: aov,
		})
	}

	return records, nil
}
