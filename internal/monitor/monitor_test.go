package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runfeed/runfeed/internal/config"
	"github.com/runfeed/runfeed/internal/models"
)

// fakeSource serves a fixed repository set with canned runs and blocks
// FollowRun until the test releases it.
type fakeSource struct {
	repos    []models.RepositoryRef
	runs     map[string][]models.RunRecord
	enumErr  error
	release  chan struct{}
	mu       sync.Mutex
	followed []string
}

func (f *fakeSource) ListRepositories(ctx context.Context) ([]models.RepositoryRef, error) {
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	return f.repos, nil
}

func (f *fakeSource) ListRuns(ctx context.Context, owner, repo string, limit int) ([]models.RunRecord, error) {
	return f.runs[owner+"/"+repo], nil
}

func (f *fakeSource) FollowRun(ctx context.Context, run models.RunRecord) error {
	f.mu.Lock()
	f.followed = append(f.followed, run.Key())
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return nil
}

func (f *fakeSource) followedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.followed...)
}

type scanResult struct {
	mode models.DisplayMode
	runs []models.RunRecord
}

type captureSink struct {
	mu       sync.Mutex
	scans    []scanResult
	failures []error
}

func (s *captureSink) ScanCompleted(mode models.DisplayMode, runs []models.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = append(s.scans, scanResult{mode: mode, runs: runs})
}

func (s *captureSink) ScanFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

func (s *captureSink) FollowStarted(run models.RunRecord) {}

func (s *captureSink) FollowEnded(run models.RunRecord, err error) {}

func (s *captureSink) lastScan(t *testing.T) scanResult {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.scans)
	return s.scans[len(s.scans)-1]
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:         t.TempDir(),
		IntervalMinutes: 30,
		WindowMinutes:   30,
		PerRepoLimit:    100,
		FirstLoadCount:  100,
	}
}

func completed(repo string, number int64, createdAt time.Time) models.RunRecord {
	return models.RunRecord{
		Owner:      "acme",
		Repo:       repo,
		Number:     number,
		Status:     models.RunStatusCompleted,
		Conclusion: models.RunConclusionSuccess,
		CreatedAt:  createdAt,
	}
}

// The reference scenario: X has a 40-minute-old completed run and a
// 5-minute-old in-progress run, Y has a 50-minute-old completed run. An
// interval scan with a 30-minute window and an empty ledger shows only X#2
// and follows exactly that run.
func TestIntervalScanScenario(t *testing.T) {
	now := time.Now()
	inProg := models.RunRecord{
		Owner: "acme", Repo: "x", Number: 2,
		Status:    models.RunStatusInProgress,
		CreatedAt: now.Add(-5 * time.Minute),
	}
	src := &fakeSource{
		repos: []models.RepositoryRef{
			{Owner: "acme", Name: "x"},
			{Owner: "acme", Name: "y"},
		},
		runs: map[string][]models.RunRecord{
			"acme/x": {inProg, completed("x", 1, now.Add(-40*time.Minute))},
			"acme/y": {completed("y", 1, now.Add(-50*time.Minute))},
		},
		release: make(chan struct{}),
	}
	defer close(src.release)

	sink := &captureSink{}
	m := New(testConfig(t), src, sink)

	require.NoError(t, m.RunScan(context.Background(), models.ModeInterval))

	got := sink.lastScan(t)
	assert.Equal(t, models.ModeInterval, got.mode)
	require.Len(t, got.runs, 1)
	assert.Equal(t, "acme/x#2", got.runs[0].Key())

	assert.Eventually(t, func() bool {
		keys := src.followedKeys()
		return len(keys) == 1 && keys[0] == "acme/x#2"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"acme/x#2"}, m.Following())
}

func TestFirstScanLoadsEverything(t *testing.T) {
	now := time.Now()
	src := &fakeSource{
		repos: []models.RepositoryRef{{Owner: "acme", Name: "x"}},
		runs: map[string][]models.RunRecord{
			"acme/x": {
				completed("x", 2, now.Add(-5*time.Minute)),
				completed("x", 1, now.Add(-40*time.Hour)),
			},
		},
	}

	sink := &captureSink{}
	m := New(testConfig(t), src, sink)
	require.NoError(t, m.RunScan(context.Background(), models.ModeFirst))

	got := sink.lastScan(t)
	assert.Equal(t, models.ModeFirst, got.mode)
	assert.Len(t, got.runs, 2)
}

func TestScanFailureIsReportedNotFatal(t *testing.T) {
	src := &fakeSource{enumErr: errors.New("api unreachable")}
	sink := &captureSink{}
	m := New(testConfig(t), src, sink)

	err := m.RunScan(context.Background(), models.ModeInterval)
	assert.Error(t, err)
	assert.Len(t, sink.failures, 1)
	assert.Empty(t, sink.scans)
}

func TestStartRunsInitialScanThenStopsOnCancel(t *testing.T) {
	now := time.Now()
	src := &fakeSource{
		repos: []models.RepositoryRef{{Owner: "acme", Name: "x"}},
		runs: map[string][]models.RunRecord{
			"acme/x": {completed("x", 1, now.Add(-time.Minute))},
		},
	}

	cfg := testConfig(t)
	cfg.IntervalMinutes = 1
	sink := &captureSink{}
	m := New(cfg, src, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	// The startup scan is a First-mode scan.
	assert.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.scans) >= 1 && sink.scans[0].mode == models.ModeFirst
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestLedgerPersistsAcrossMonitors(t *testing.T) {
	now := time.Now()
	cfg := testConfig(t)
	src := &fakeSource{
		repos: []models.RepositoryRef{{Owner: "acme", Name: "x"}},
		runs: map[string][]models.RunRecord{
			"acme/x": {completed("x", 1, now.Add(-5*time.Minute))},
		},
	}

	first := &captureSink{}
	require.NoError(t, New(cfg, src, first).RunScan(context.Background(), models.ModeInterval))
	require.Len(t, first.lastScan(t).runs, 1)

	// A new process sharing the ledger file must not re-display the run.
	second := &captureSink{}
	require.NoError(t, New(cfg, src, second).RunScan(context.Background(), models.ModeInterval))
	assert.Empty(t, second.lastScan(t).runs)
}
