package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/affiliate-performance/internal/model"
)

func TestScore_DefaultPolicyExample(t *testing.T) {
	records := []model.AffiliateRecord{
		{AffiliateID: "1", Name: "A", Conversions: 50, Revenue: 5000, AvgOrderValue: 100},
		{AffiliateID: "2", Name: "B", Conversions: 30, Revenue: 3000, AvgOrderValue: 100},
	}

	ranked, err := Score(records, DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	// A: 50*0.3 + 5000*0.005 + 100*0.2 = 15 + 25 + 20 = 60.0
	assert.Equal(t, "A", ranked[0].Name)
	assert.Equal(t, 500.00, ranked[0].Commission)
	assert.InDelta(t, 60.0, ranked[0].PerformanceScore, 1e-9)

	// B: 30*0.3 + 3000*0.005 + 100*0.2 = 9 + 15 + 20 = 44.0
	assert.Equal(t, "B", ranked[1].Name)
	assert.Equal(t, 300.00, ranked[1].Commission)
	assert.InDelta(t, 44.0, ranked[1].PerformanceScore, 1e-9)
}

func TestScore_RankingAndStability(t *testing.T) {
	tests := []struct {
		name      string
		records   []model.AffiliateRecord
		wantOrder []string
	}{
		{
			name: "sorted descending by score",
			records: []model.AffiliateRecord{
				{AffiliateID: "low", Conversions: 1, Revenue: 10, AvgOrderValue: 10},
				{AffiliateID: "high", Conversions: 100, Revenue: 10000, AvgOrderValue: 200},
				{AffiliateID: "mid", Conversions: 20, Revenue: 2000, AvgOrderValue: 50},
			},
			wantOrder: []string{"high", "mid", "low"},
		},
		{
			name: "ties preserve input order",
			records: []model.AffiliateRecord{
				{AffiliateID: "first", Conversions: 10, Revenue: 1000, AvgOrderValue: 50},
				{AffiliateID: "second", Conversions: 10, Revenue: 1000, AvgOrderValue: 50},
				{AffiliateID: "third", Conversions: 10, Revenue: 1000, AvgOrderValue: 50},
			},
			wantOrder: []string{"first", "second", "third"},
		},
		{
			name:      "empty input",
			records:   []model.AffiliateRecord{},
			wantOrder: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, err := Score(tt.records, DefaultPolicy())
			require.NoError(t, err)
			require.Len(t, ranked, len(tt.records))

			got := make([]string, len(ranked))
			for i, r := range ranked {
				got[i] = r.AffiliateID
			}
			assert.Equal(t, tt.wantOrder, got)

			for i := 1; i < len(ranked); i++ {
				assert.GreaterOrEqual(t, ranked[i-1].PerformanceScore, ranked[i].PerformanceScore)
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	records := []model.AffiliateRecord{
		{AffiliateID: "1", Name: "A", Conversions: 13, Revenue: 1234.56, AvgOrderValue: 94.97},
		{AffiliateID: "2", Name: "B", Conversions: 7, Revenue: 890.12, AvgOrderValue: 127.16},
		{AffiliateID: "3", Name: "C", Conversions: 42, Revenue: 4200.42, AvgOrderValue: 100.01},
	}

	first, err := Score(records, DefaultPolicy())
	require.NoError(t, err)
	second, err := Score(records, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScore_DoesNotMutateInput(t *testing.T) {
	records := []model.AffiliateRecord{
		{AffiliateID: "1", Name: "A", Conversions: 5, Revenue: 100, AvgOrderValue: 20},
		{AffiliateID: "2", Name: "B", Conversions: 50, Revenue: 100, AvgOrderValue: 20},
	}
	snapshot := make([]model.AffiliateRecord, len(records))
	copy(snapshot, records)

	_, err := Score(records, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, snapshot, records)
}

func TestScore_InvalidRecords(t *testing.T) {
	tests := []struct {
		name      string
		record    model.AffiliateRecord
		wantField string
	}{
		{
			name:      "negative revenue",
			record:    model.AffiliateRecord{AffiliateID: "bad", Revenue: -10},
			wantField: "revenue",
		},
		{
			name:      "negative conversions",
			record:    model.AffiliateRecord{AffiliateID: "bad", Conversions: -1},
			wantField: "conversions",
		},
		{
			name:      "NaN average order value",
			record:    model.AffiliateRecord{AffiliateID: "bad", AvgOrderValue: math.NaN()},
			wantField: "avg_order_value",
		},
		{
			name:      "infinite revenue",
			record:    model.AffiliateRecord{AffiliateID: "bad", Revenue: math.Inf(1)},
			wantField: "revenue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []model.AffiliateRecord{
				{AffiliateID: "good", Conversions: 1, Revenue: 100, AvgOrderValue: 10},
				tt.record,
			}

			ranked, err := Score(records, DefaultPolicy())
			assert.Nil(t, ranked, "no partial list on invalid input")

			var invErr *InvalidRecordError
			require.True(t, errors.As(err, &invErr))
			assert.Equal(t, "bad", invErr.AffiliateID)
			assert.Equal(t, tt.wantField, invErr.Field)
		})
	}
}

func TestScore_PolicyValidation(t *testing.T) {
	records := []model.AffiliateRecord{
		{AffiliateID: "1", Conversions: 1, Revenue: 100, AvgOrderValue: 10},
	}

	_, err := Score(records, Policy{CommissionRate: 1.5})
	assert.Error(t, err)

	_, err = Score(records, Policy{CommissionRate: -0.1})
	assert.Error(t, err)
}

func TestScore_CommissionRounding(t *testing.T) {
	tests := []struct {
		name    string
		revenue float64
		rate    float64
		want    float64
	}{
		{name: "exact", revenue: 5000, rate: 0.10, want: 500.00},
		{name: "rounds half up", revenue: 1.255, rate: 0.10, want: 0.13},
		{name: "rounds down", revenue: 1.234, rate: 0.10, want: 0.12},
		{name: "zero revenue", revenue: 0, rate: 0.10, want: 0},
		{name: "zero rate", revenue: 5000, rate: 0, want: 0},
		{name: "no float drift", revenue: 29.99, rate: 0.10, want: 3.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultPolicy()
			policy.CommissionRate = tt.rate

			ranked, err := Score([]model.AffiliateRecord{
				{AffiliateID: "1", Revenue: tt.revenue},
			}, policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ranked[0].Commission)
		})
	}
}

func TestScore_UnnormalizedWeights(t *testing.T) {
	// Weights are linear coefficients, never rescaled to sum to 1.
	policy := Policy{
		CommissionRate:      0.10,
		WeightConversions:   2.0,
		WeightRevenue:       3.0,
		WeightAvgOrderValue: 4.0,
	}

	ranked, err := Score([]model.AffiliateRecord{
		{AffiliateID: "1", Conversions: 1, Revenue: 1, AvgOrderValue: 1},
	}, policy)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, ranked[0].PerformanceScore, 1e-9)
}

func TestTotals(t *testing.T) {
	ranked, err := Score([]model.AffiliateRecord{
		{AffiliateID: "1", Conversions: 50, Revenue: 5000, AvgOrderValue: 100},
		{AffiliateID: "2", Conversions: 30, Revenue: 3000, AvgOrderValue: 100},
	}, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 8000.0, TotalRevenue(ranked))
	assert.Equal(t, 800.0, TotalCommission(ranked))
}
