package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/runfeed/runfeed/internal/models"
)

// Ledger is the persisted dedupe state: every run identity already shown to
// the user, plus the time of the last successful scan. The seen set only
// grows for the lifetime of one ledger file; it is never pruned.
type Ledger struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	lastScan time.Time
}

// ledgerFile is the on-disk shape. last_scan_time is epoch milliseconds.
type ledgerFile struct {
	SeenRuns     []string `json:"seen_runs"`
	LastScanTime int64    `json:"last_scan_time"`
}

func New() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Load reads the ledger at path. An absent or malformed file yields an empty
// ledger; neither is an error.
func Load(path string) *Ledger {
	l := New()

	data, err := os.ReadFile(path)
	if err != nil {
		return l
	}

	var f ledgerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return l
	}

	for _, key := range f.SeenRuns {
		l.seen[key] = struct{}{}
	}
	if f.LastScanTime > 0 {
		l.lastScan = time.UnixMilli(f.LastScanTime)
	}
	return l
}

// Save persists the ledger to path. Called at the end of every scan; the
// caller treats a failure as non-fatal.
func (l *Ledger) Save(path string) error {
	l.mu.Lock()
	f := ledgerFile{SeenRuns: make([]string, 0, len(l.seen))}
	for key := range l.seen {
		f.SeenRuns = append(f.SeenRuns, key)
	}
	if !l.lastScan.IsZero() {
		f.LastScanTime = l.lastScan.UnixMilli()
	}
	l.mu.Unlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Filter applies the display-mode semantics to the aggregator's sorted
// output and records every returned identity as seen.
//
// First mode returns the first firstCount records unconditionally. Interval
// mode returns only records created within [now-window, now] whose identity
// has not been returned before; records outside the window are dropped even
// if unseen.
func (l *Ledger) Filter(runs []models.RunRecord, mode models.DisplayMode, now time.Time, window time.Duration, firstCount int) []models.RunRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.RunRecord
	switch mode {
	case models.ModeFirst:
		n := len(runs)
		if n > firstCount {
			n = firstCount
		}
		out = make([]models.RunRecord, n)
		copy(out, runs[:n])
		for _, r := range out {
			l.seen[r.Key()] = struct{}{}
		}

	case models.ModeInterval:
		cutoff := now.Add(-window)
		for _, r := range runs {
			if r.CreatedAt.Before(cutoff) || r.CreatedAt.After(now) {
				continue
			}
			key := r.Key()
			if _, ok := l.seen[key]; ok {
				continue
			}
			l.seen[key] = struct{}{}
			out = append(out, r)
		}
	}

	l.lastScan = now
	return out
}

func (l *Ledger) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func (l *Ledger) LastScan() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastScan
}
