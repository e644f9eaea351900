package source

import (
	"context"

	"github.com/runfeed/runfeed/internal/models"
)

// RunSource supplies raw run data: repository enumeration, recent runs per
// repository, and a blocking watch on a single run.
type RunSource interface {
	// ListRepositories enumerates the repositories owned by the configured
	// account.
	ListRepositories(ctx context.Context) ([]models.RepositoryRef, error)

	// ListRuns fetches up to limit of the most recent runs for one
	// repository, sorted by recency.
	ListRuns(ctx context.Context, owner, repo string, limit int) ([]models.RunRecord, error)

	// FollowRun blocks until the run reaches a terminal state or the
	// underlying transport closes.
	FollowRun(ctx context.Context, run models.RunRecord) error
}
