// Package screening flags suspicious affiliate activity before scoring.
// Screening only annotates; it never drops records. All-or-nothing input
// validation stays with the scoring engine.
package screening

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/affiliate-performance/internal/model"
)

// Options holds configuration for the screening process
type Options struct {
	// EnableOutlierDetection enables statistical outlier flagging
	EnableOutlierDetection bool

	// OutlierIQRMultiplier defines sensitivity for outlier detection (1.5 is standard)
	OutlierIQRMultiplier float64

	// MaxRevenuePerConversion flags records whose revenue per conversion
	// exceeds this plausibility bound; zero disables the check
	MaxRevenuePerConversion float64

	// MinConversionsForRatio is the conversion count below which the
	// revenue-per-conversion ratio is too noisy to judge
	MinConversionsForRatio int
}

// DefaultOptions returns sensible defaults for screening
func DefaultOptions() Options {
	return Options{
		EnableOutlierDetection:  true,
		OutlierIQRMultiplier:    1.5,
		MaxRevenuePerConversion: 0,
		MinConversionsForRatio:  5,
	}
}

// Flag marks one suspicious record with the reason it was flagged.
type Flag struct {
	AffiliateID string `json:"affiliate_id"`
	Name        string `json:"name"`
	Reason      string `json:"reason"`
}

// Screen inspects the records and returns a flag per suspicious one. The
// input is never modified or filtered; flags are reporting data for the
// dashboard and for manual review before a payout run.
func Screen(records []model.AffiliateRecord, opts Options) []Flag {
	var flags []Flag

	flags = append(flags, flagImplausibleRatios(records, opts)...)

	if opts.EnableOutlierDetection && len(records) > 3 {
		flags = append(flags, flagRevenueOutliers(records, opts.OutlierIQRMultiplier)...)
	}

	if len(flags) > 0 {
		logrus.WithFields(logrus.Fields{
			"total":   len(records),
			"flagged": len(flags),
		}).Info("Screening flagged suspicious affiliate records")
	}

	return flags
}

// flagImplausibleRatios flags records whose revenue per conversion exceeds
// the configured plausibility bound.
func flagImplausibleRatios(records []model.AffiliateRecord, opts Options) []Flag {
	if opts.MaxRevenuePerConversion <= 0 {
		return nil
	}

	var flags []Flag
	for _, r := range records {
		if r.Conversions < opts.MinConversionsForRatio {
			continue
		}
		ratio := r.Revenue / float64(r.Conversions)
		if ratio > opts.MaxRevenuePerConversion {
			flags = append(flags, Flag{
				AffiliateID: r.AffiliateID,
				Name:        r.Name,
				Reason:      "revenue per conversion above plausibility bound",
			})
		}
	}
	return flags
}

// flagRevenueOutliers flags statistical outliers in revenue per conversion
// using the IQR method.
func flagRevenueOutliers(records []model.AffiliateRecord, iqrMultiplier float64) []Flag {
	// Collect ratios for records with enough conversions to be meaningful
	type rated struct {
		record model.AffiliateRecord
		ratio  float64
	}
	ratedRecords := make([]rated, 0, len(records))
	for _, r := range records {
		if r.Conversions == 0 {
			continue
		}
		ratedRecords = append(ratedRecords, rated{record: r, ratio: r.Revenue / float64(r.Conversions)})
	}

	if len(ratedRecords) <= 3 {
		return nil // Need at least 4 points for meaningful outlier detection
	}

	ratios := make([]float64, len(ratedRecords))
	for i, rr := range ratedRecords {
		ratios[i] = rr.ratio
	}

	// Calculate Q1, Q3 and IQR
	sort.Float64s(ratios)
	q1 := ratios[len(ratios)/4]
	q3 := ratios[len(ratios)*3/4]
	iqr := q3 - q1

	lowerBound := q1 - iqrMultiplier*iqr
	upperBound := q3 + iqrMultiplier*iqr

	var flags []Flag
	for _, rr := range ratedRecords {
		if rr.ratio < lowerBound || rr.ratio > upperBound {
			logrus.WithFields(logrus.Fields{
				"affiliate_id": rr.record.AffiliateID,
				"ratio":        rr.ratio,
				"bounds":       []float64{lowerBound, upperBound},
			}).Debug("Flagged outlier affiliate record")

			flags = append(flags, Flag{
				AffiliateID: rr.record.AffiliateID,
				Name:        rr.record.Name,
				Reason:      "revenue per conversion is a statistical outlier",
			})
		}
	}

	return flags
}
