package follow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runfeed/runfeed/internal/models"
)

// watchSource counts FollowRun invocations and blocks each session until its
// release channel is closed.
type watchSource struct {
	mu      sync.Mutex
	starts  map[string]int
	release map[string]chan struct{}
}

func newWatchSource() *watchSource {
	return &watchSource{
		starts:  make(map[string]int),
		release: make(map[string]chan struct{}),
	}
}

func (w *watchSource) ListRepositories(ctx context.Context) ([]models.RepositoryRef, error) {
	return nil, nil
}

func (w *watchSource) ListRuns(ctx context.Context, owner, repo string, limit int) ([]models.RunRecord, error) {
	return nil, nil
}

func (w *watchSource) FollowRun(ctx context.Context, run models.RunRecord) error {
	w.mu.Lock()
	w.starts[run.Key()]++
	ch, ok := w.release[run.Key()]
	w.mu.Unlock()
	if ok {
		<-ch
	}
	return nil
}

func (w *watchSource) startsFor(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.starts[key]
}

func (w *watchSource) block(key string) {
	w.mu.Lock()
	w.release[key] = make(chan struct{})
	w.mu.Unlock()
}

func (w *watchSource) finish(key string) {
	w.mu.Lock()
	close(w.release[key])
	w.mu.Unlock()
}

// recorder collects follow lifecycle events.
type recorder struct {
	started chan string
	ended   chan string
}

func newRecorder() *recorder {
	return &recorder{
		started: make(chan string, 16),
		ended:   make(chan string, 16),
	}
}

func (r *recorder) FollowStarted(run models.RunRecord) { r.started <- run.Key() }

func (r *recorder) FollowEnded(run models.RunRecord, err error) { r.ended <- run.Key() }

func waitFor(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func inProgress(number int64) models.RunRecord {
	return models.RunRecord{Owner: "acme", Repo: "api", Number: number, Status: models.RunStatusInProgress}
}

func TestReconcileStartsSessionForInProgressRun(t *testing.T) {
	src := newWatchSource()
	src.block("acme/api#1")
	rec := newRecorder()
	m := NewManager(src, rec)

	m.Reconcile(context.Background(), []models.RunRecord{inProgress(1)})

	waitFor(t, rec.started, "acme/api#1")
	assert.True(t, m.Following("acme/api#1"))
	assert.Equal(t, 1, m.ActiveCount())
}

func TestReconcileIgnoresNonRunningStatuses(t *testing.T) {
	src := newWatchSource()
	m := NewManager(src, newRecorder())

	m.Reconcile(context.Background(), []models.RunRecord{
		{Owner: "acme", Repo: "api", Number: 1, Status: models.RunStatusQueued},
		{Owner: "acme", Repo: "api", Number: 2, Status: models.RunStatusCompleted, Conclusion: models.RunConclusionSuccess},
	})

	assert.Equal(t, 0, m.ActiveCount())
	assert.Equal(t, 0, src.startsFor("acme/api#1"))
	assert.Equal(t, 0, src.startsFor("acme/api#2"))
}

func TestIdempotentStartAcrossConsecutiveScans(t *testing.T) {
	src := newWatchSource()
	src.block("acme/api#1")
	rec := newRecorder()
	m := NewManager(src, rec)

	// The same run shows up in two consecutive scans' filtered output.
	m.Reconcile(context.Background(), []models.RunRecord{inProgress(1)})
	waitFor(t, rec.started, "acme/api#1")
	m.Reconcile(context.Background(), []models.RunRecord{inProgress(1)})

	assert.Eventually(t, func() bool { return src.startsFor("acme/api#1") == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestTeardownRemovesEntryWhenWatchCompletes(t *testing.T) {
	src := newWatchSource()
	src.block("acme/api#1")
	rec := newRecorder()
	m := NewManager(src, rec)

	m.Reconcile(context.Background(), []models.RunRecord{inProgress(1)})
	waitFor(t, rec.started, "acme/api#1")

	src.finish("acme/api#1")
	waitFor(t, rec.ended, "acme/api#1")
	assert.False(t, m.Following("acme/api#1"))

	// A later scan reporting the run as completed must not start anything.
	done := inProgress(1)
	done.Status = models.RunStatusCompleted
	done.Conclusion = models.RunConclusionSuccess
	m.Reconcile(context.Background(), []models.RunRecord{done})

	assert.Equal(t, 1, src.startsFor("acme/api#1"))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestRestartAllowedAfterTeardown(t *testing.T) {
	src := newWatchSource()
	src.block("acme/api#1")
	rec := newRecorder()
	m := NewManager(src, rec)

	m.Reconcile(context.Background(), []models.RunRecord{inProgress(1)})
	waitFor(t, rec.started, "acme/api#1")
	src.finish("acme/api#1")
	waitFor(t, rec.ended, "acme/api#1")

	// In-progress again after an intervening idle, e.g. a re-run. A fresh
	// session is legitimate here.
	src.block("acme/api#1")
	m.Reconcile(context.Background(), []models.RunRecord{inProgress(1)})
	waitFor(t, rec.started, "acme/api#1")

	assert.Eventually(t, func() bool { return src.startsFor("acme/api#1") == 2 },
		2*time.Second, 10*time.Millisecond)
	assert.True(t, m.Following("acme/api#1"))
}

func TestActiveKeysSorted(t *testing.T) {
	src := newWatchSource()
	src.block("acme/api#2")
	src.block("acme/api#1")
	rec := newRecorder()
	m := NewManager(src, rec)

	m.Reconcile(context.Background(), []models.RunRecord{inProgress(2), inProgress(1)})
	waitFor(t, rec.started, "acme/api#2")
	waitFor(t, rec.started, "acme/api#1")

	require.Equal(t, []string{"acme/api#1", "acme/api#2"}, m.ActiveKeys())
}
