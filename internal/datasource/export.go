package datasource

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/yourorg/affiliate-performance/internal/model"
)

// exportColumns is the fixed column order of the ranked-table export.
var exportColumns = []string{
	"affiliate_id", "name", "conversions", "revenue",
	"avg_order_value", "commission", "performance_score",
}

// ExportCSV writes the ranked, scored table as CSV in the fixed column order.
func ExportCSV(w io.Writer, ranked model.RankedList) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(exportColumns); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	for _, r := range ranked {
		row := []string{
			r.AffiliateID,
			r.Name,
			strconv.Itoa(r.Conversions),
			strconv.FormatFloat(r.Revenue, 'f', -1, 64),
			strconv.FormatFloat(r.AvgOrderValue, 'f', -1, 64),
			strconv.FormatFloat(r.Commission, 'f', 2, 64),
			strconv.FormatFloat(r.PerformanceScore, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("error writing row for %s: %w", r.AffiliateID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
