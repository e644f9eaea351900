package aggregator

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/runfeed/runfeed/internal/models"
	"github.com/runfeed/runfeed/internal/source"
)

// Aggregator fans run-list fetches out across repositories and merges the
// results into one chronological view. It holds no state between scans;
// every scan re-fetches raw data.
type Aggregator struct {
	source source.RunSource
}

func New(src source.RunSource) *Aggregator {
	return &Aggregator{source: src}
}

// Scan fetches up to limitPerRepo runs from every repository concurrently
// and returns the merged result sorted by creation time, newest first. Ties
// keep repository-enumeration order.
//
// A single repository's fetch failure never fails the scan: that repository
// contributes zero runs and the failure is logged at debug level.
func (a *Aggregator) Scan(ctx context.Context, repos []models.RepositoryRef, limitPerRepo int) []models.RunRecord {
	perRepo := make([][]models.RunRecord, len(repos))
	g, gCtx := errgroup.WithContext(ctx)

	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			runs, err := a.source.ListRuns(gCtx, repo.Owner, repo.Name, limitPerRepo)
			if err != nil {
				// Partial failure: this repository yields nothing.
				slog.Debug("run fetch failed", "repo", repo.FullName(), "error", err)
				return nil
			}
			perRepo[i] = runs
			return nil
		})
	}
	_ = g.Wait() // fetch errors are swallowed above, never returned

	var merged []models.RunRecord
	for _, runs := range perRepo {
		merged = append(merged, runs...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}
