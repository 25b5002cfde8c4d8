// Package datasource provides loaders for affiliate activity records from
// tabular and remote sources, plus the CSV export of ranked results. The
// scoring engine never touches storage; everything I/O-shaped lives here.
package datasource

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/affiliate-performance/internal/model"
)

// Source is the interface that all record sources implement.
type Source interface {
	// Load retrieves affiliate records from the underlying source
	Load(ctx context.Context) ([]model.AffiliateRecord, error)
}

// DataSourceError reports a missing, unreadable or malformed input table.
// It is fatal to the calling operation and is surfaced to the caller, never
// to the scoring engine.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// MultiSource loads from several sources concurrently and merges the results.
// Individual source failures are tolerated as long as at least one source
// yields records.
type MultiSource struct {
	sources []Source
}

// NewMultiSource creates a merged source over the given sources.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources}
}

// Load fans out to all sources and concatenates their records.
func (m *MultiSource) Load(ctx context.Context) ([]model.AffiliateRecord, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		records []model.AffiliateRecord
		errs    []error
	)

	for _, src := range m.sources {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()

			loaded, err := s.Load(ctx)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, err)
				return
			}
			records = append(records, loaded...)
		}(src)
	}

	wg.Wait()

	if len(records) == 0 && len(errs) > 0 {
		return nil, &DataSourceError{Source: "multi", Err: fmt.Errorf("all sources failed: %v", errs[0])}
	}

	if len(errs) > 0 {
		logrus.Warnf("%d of %d record sources failed, continuing with partial data", len(errs), len(m.sources))
	}

	return records, nil
}
