package follow

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/runfeed/runfeed/internal/models"
	"github.com/runfeed/runfeed/internal/source"
)

// Events receives follow-session lifecycle notifications. Callbacks fire
// from session goroutines.
type Events interface {
	FollowStarted(run models.RunRecord)
	FollowEnded(run models.RunRecord, err error)
}

// Manager maintains at most one live-follow session per run identity. A
// session is started when an in-progress run with no existing entry shows up
// in a scan's filtered output, and its entry is removed when the underlying
// watch returns. The manager never cancels sessions itself; process shutdown
// tears them down through the context.
type Manager struct {
	source source.RunSource
	events Events

	mu     sync.Mutex
	active map[string]models.RunRecord
}

func NewManager(src source.RunSource, events Events) *Manager {
	return &Manager{
		source: src,
		events: events,
		active: make(map[string]models.RunRecord),
	}
}

// Reconcile starts a session for every in-progress run in the batch that is
// not already being followed. Starting is idempotent by run identity: the
// same run appearing in consecutive scans' output is consulted against the
// active set, not against display history.
func (m *Manager) Reconcile(ctx context.Context, runs []models.RunRecord) {
	for _, run := range runs {
		if !run.InProgress() {
			continue
		}
		m.follow(ctx, run)
	}
}

func (m *Manager) follow(ctx context.Context, run models.RunRecord) {
	key := run.Key()

	m.mu.Lock()
	if _, ok := m.active[key]; ok {
		m.mu.Unlock()
		return
	}
	m.active[key] = run
	m.mu.Unlock()

	if m.events != nil {
		m.events.FollowStarted(run)
	}

	go func() {
		err := m.source.FollowRun(ctx, run)

		m.mu.Lock()
		delete(m.active, key)
		m.mu.Unlock()

		if err != nil {
			slog.Debug("follow session ended with error", "run", key, "error", err)
		}
		if m.events != nil {
			m.events.FollowEnded(run, err)
		}
	}()
}

// Following reports whether a session is currently active for key.
func (m *Manager) Following(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[key]
	return ok
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// ActiveKeys returns the identities currently being followed, sorted for
// stable display.
func (m *Manager) ActiveKeys() []string {
	m.mu.Lock()
	keys := make([]string, 0, len(m.active))
	for key := range m.active {
		keys = append(keys, key)
	}
	m.mu.Unlock()

	sort.Strings(keys)
	return keys
}
