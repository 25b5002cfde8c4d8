// Package scoring computes commissions and performance scores for affiliate
// records and ranks them. Scoring is a pure function of the input records and
// the active policy: no I/O, no shared state, and identical inputs always
// produce identical output.
package scoring

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yourorg/affiliate-performance/internal/model"
)

// Policy holds the configurable coefficients for commission and score
// computation. The weights are direct linear-combination coefficients, not a
// normalized distribution; they are intentionally not required to sum to 1.
type Policy struct {
	// CommissionRate is the fraction of revenue owed as commission, in [0, 1]
	CommissionRate float64 `json:"commission_rate"`

	// WeightConversions scales the conversion count in the performance score
	WeightConversions float64 `json:"weight_conversions"`

	// WeightRevenue scales revenue in the performance score
	WeightRevenue float64 `json:"weight_revenue"`

	// WeightAvgOrderValue scales the average order value in the performance score
	WeightAvgOrderValue float64 `json:"weight_avg_order_value"`
}

// DefaultPolicy returns the standard commission rate and score weights.
func DefaultPolicy() Policy {
	return Policy{
		CommissionRate:      0.10,
		WeightConversions:   0.3,
		WeightRevenue:       0.005,
		WeightAvgOrderValue: 0.2,
	}
}

// Validate checks that the policy values are usable.
func (p Policy) Validate() error {
	if p.CommissionRate < 0 || p.CommissionRate > 1 {
		return fmt.Errorf("commission rate out of range [0, 1]: %f", p.CommissionRate)
	}
	return nil
}

// InvalidRecordError reports a record that violates the AffiliateRecord
// invariant. A single invalid record aborts the whole scoring call: the
// ranking compares across all records, so one corrupt value could mislead it.
type InvalidRecordError struct {
	AffiliateID string
	Field       string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record %s: field %s is negative or not finite", e.AffiliateID, e.Field)
}

// Score derives a ranked list from the given records under the given policy.
// The result is sorted by performance score descending; ties keep the input
// order. An empty input yields an empty list. Scoring is all-or-nothing: the
// first invalid record aborts the call with an InvalidRecordError and no
// partial list is produced.
func Score(records []model.AffiliateRecord, policy Policy) (model.RankedList, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("scoring policy: %w", err)
	}

	rate := decimal.NewFromFloat(policy.CommissionRate)
	ranked := make(model.RankedList, 0, len(records))

	for _, r := range records {
		if field := r.Validate(); field != "" {
			return nil, &InvalidRecordError{AffiliateID: r.AffiliateID, Field: field}
		}

		ranked = append(ranked, model.ScoredAffiliateRecord{
			AffiliateRecord:  r,
			Commission:       commission(r.Revenue, rate),
			PerformanceScore: performanceScore(r, policy),
		})
	}

	// Stable sort keeps the relative input order for equal scores, so the
	// output is deterministic for identical inputs.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PerformanceScore > ranked[j].PerformanceScore
	})

	return ranked, nil
}

// commission computes revenue * rate rounded half-up to two decimal places.
// Decimal arithmetic avoids binary-float rounding artifacts on currency values.
func commission(revenue float64, rate decimal.Decimal) float64 {
	amount := decimal.NewFromFloat(revenue).Mul(rate).Round(2)
	return amount.InexactFloat64()
}

// performanceScore computes the weighted linear combination of the record's
// input fields. The literal formula is preserved: no normalization is applied.
func performanceScore(r model.AffiliateRecord, p Policy) float64 {
	return float64(r.Conversions)*p.WeightConversions +
		r.Revenue*p.WeightRevenue +
		r.AvgOrderValue*p.WeightAvgOrderValue
}

// CommissionAmount returns the exact decimal commission for a scored record,
// for callers that need the unrounded-float-free amount on a payout request.
func CommissionAmount(r model.ScoredAffiliateRecord) decimal.Decimal {
	return decimal.NewFromFloat(r.Commission).Round(2)
}

// TotalRevenue sums revenue across a ranked list, for dashboard headline metrics.
func TotalRevenue(ranked model.RankedList) float64 {
	total := decimal.Zero
	for _, r := range ranked {
		total = total.Add(decimal.NewFromFloat(r.Revenue))
	}
	return total.InexactFloat64()
}

// TotalCommission sums commission across a ranked list.
func TotalCommission(ranked model.RankedList) float64 {
	total := decimal.Zero
	for _, r := range ranked {
		total = total.Add(decimal.NewFromFloat(r.Commission))
	}
	return total.Round(2).InexactFloat64()
}
