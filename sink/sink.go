// Package sink persists harvested records. Every Save call receives the
// complete deduplicated set for one query.
package sink

import (
	"context"
	"errors"

	"github.com/use-agent/harvest/models"
)

// Sink persists the records of one query and returns a reference to
// where they went (a file path, a collection name).
type Sink interface {
	Save(ctx context.Context, q models.Query, records []models.NormalizedRecord) (string, error)
}

// Multi fans a Save out to several sinks. The first sink's reference is
// returned; every failure is reported.
type Multi []Sink

// Save implements Sink.
func (m Multi) Save(ctx context.Context, q models.Query, records []models.NormalizedRecord) (string, error) {
	var (
		ref  string
		errs []error
	)
	for i, s := range m {
		r, err := s.Save(ctx, q, records)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			ref = r
		}
	}
	if len(errs) > 0 {
		return ref, models.NewHarvestError(models.ErrCodePersist, "saving records for "+q.String(), errors.Join(errs...))
	}
	return ref, nil
}
