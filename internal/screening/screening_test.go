package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/affiliate-performance/internal/model"
)

func baseline(n int) []model.AffiliateRecord {
	records := make([]model.AffiliateRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, model.AffiliateRecord{
			AffiliateID:   string(rune('a' + i)),
			Name:          "Affiliate",
			Conversions:   20,
			Revenue:       2000, // 100 per conversion
			AvgOrderValue: 100,
		})
	}
	return records
}

func TestScreen_FlagsRevenueOutlier(t *testing.T) {
	records := append(baseline(6), model.AffiliateRecord{
		AffiliateID: "sus",
		Name:        "TooGoodToBeTrue",
		Conversions: 2,
		Revenue:     90000, // 45000 per conversion against a baseline of 100
	})

	flags := Screen(records, DefaultOptions())
	require.Len(t, flags, 1)
	assert.Equal(t, "sus", flags[0].AffiliateID)
	assert.Contains(t, flags[0].Reason, "outlier")
}

func TestScreen_CleanDataNoFlags(t *testing.T) {
	assert.Empty(t, Screen(baseline(8), DefaultOptions()))
}

func TestScreen_SmallDatasetSkipsOutlierDetection(t *testing.T) {
	// Two records are not enough to judge outliers; nothing is flagged even
	// when one looks extreme.
	records := []model.AffiliateRecord{
		{AffiliateID: "1", Conversions: 10, Revenue: 1000},
		{AffiliateID: "2", Conversions: 1, Revenue: 99999},
	}
	assert.Empty(t, Screen(records, DefaultOptions()))
}

func TestScreen_DisabledOutlierDetection(t *testing.T) {
	records := append(baseline(6), model.AffiliateRecord{
		AffiliateID: "sus", Conversions: 2, Revenue: 90000,
	})

	opts := DefaultOptions()
	opts.EnableOutlierDetection = false
	assert.Empty(t, Screen(records, opts))
}

func TestScreen_PlausibilityBound(t *testing.T) {
	opts := DefaultOptions()
	opts.EnableOutlierDetection = false
	opts.MaxRevenuePerConversion = 500
	opts.MinConversionsForRatio = 5

	records := []model.AffiliateRecord{
		{AffiliateID: "ok", Conversions: 10, Revenue: 2000},       // 200 per conversion
		{AffiliateID: "over", Conversions: 10, Revenue: 20000},    // 2000 per conversion
		{AffiliateID: "too-few", Conversions: 2, Revenue: 20000},  // below MinConversionsForRatio
	}

	flags := Screen(records, opts)
	require.Len(t, flags, 1)
	assert.Equal(t, "over", flags[0].AffiliateID)
	assert.Contains(t, flags[0].Reason, "plausibility")
}

func TestScreen_NeverModifiesInput(t *testing.T) {
	records := append(baseline(6), model.AffiliateRecord{
		AffiliateID: "sus", Conversions: 2, Revenue: 90000,
	})
	snapshot := make([]model.AffiliateRecord, len(records))
	copy(snapshot, records)

	Screen(records, DefaultOptions())
	assert.Equal(t, snapshot, records, "screening flags, it never filters or mutates")
}
