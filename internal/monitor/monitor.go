package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/runfeed/runfeed/internal/aggregator"
	"github.com/runfeed/runfeed/internal/config"
	"github.com/runfeed/runfeed/internal/follow"
	"github.com/runfeed/runfeed/internal/ledger"
	"github.com/runfeed/runfeed/internal/models"
	"github.com/runfeed/runfeed/internal/source"
)

// Sink receives everything the monitor produces: filtered scan results and
// follow-session lifecycle events. The console renderer and the TUI both
// implement it.
type Sink interface {
	ScanCompleted(mode models.DisplayMode, runs []models.RunRecord)
	ScanFailed(err error)
	follow.Events
}

// Monitor drives the scan cycle: enumerate repositories, aggregate runs,
// filter through the dedupe ledger, reconcile follow sessions, hand the
// result to the sink.
type Monitor struct {
	cfg     *config.Config
	source  source.RunSource
	agg     *aggregator.Aggregator
	ledger  *ledger.Ledger
	follows *follow.Manager
	sink    Sink
}

func New(cfg *config.Config, src source.RunSource, sink Sink) *Monitor {
	return &Monitor{
		cfg:     cfg,
		source:  src,
		agg:     aggregator.New(src),
		ledger:  ledger.Load(cfg.LedgerPath()),
		follows: follow.NewManager(src, sink),
		sink:    sink,
	}
}

// RunScan performs one full scan in the given display mode. Scan-level
// failure (repository enumeration) is reported to the sink and returned;
// everything below that level is recovered locally.
func (m *Monitor) RunScan(ctx context.Context, mode models.DisplayMode) error {
	started := time.Now()

	repos, err := m.source.ListRepositories(ctx)
	if err != nil {
		err = fmt.Errorf("enumerating repositories: %w", err)
		slog.Error("scan failed", "mode", mode, "error", err)
		m.sink.ScanFailed(err)
		return err
	}

	merged := m.agg.Scan(ctx, repos, m.cfg.PerRepoLimit)
	fresh := m.ledger.Filter(merged, mode, time.Now(), m.cfg.Window(), m.cfg.FirstLoadCount)

	// Persistence is best-effort: a miss risks duplicate display after a
	// restart, so it is surfaced, but the scan's results stand.
	if err := m.ledger.Save(m.cfg.LedgerPath()); err != nil {
		slog.Warn("ledger save failed", "path", m.cfg.LedgerPath(), "error", err)
	}

	m.follows.Reconcile(ctx, fresh)
	m.sink.ScanCompleted(mode, fresh)

	slog.Debug("scan finished",
		"mode", mode,
		"repos", len(repos),
		"fetched", len(merged),
		"new", len(fresh),
		"following", m.follows.ActiveCount(),
		"elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// Start runs the startup scan, then an interval scan on the configured
// cadence until ctx is cancelled. Ticks that fire while a scan is still in
// flight are skipped rather than queued.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.RunScan(ctx, models.ModeFirst); err != nil {
		// The scheduler still runs; the next tick may succeed.
		slog.Warn("initial scan failed, continuing", "error", err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	every := fmt.Sprintf("@every %dm", m.cfg.IntervalMinutes)
	_, err := c.AddFunc(every, func() {
		// Errors are already logged and reported to the sink.
		_ = m.RunScan(ctx, models.ModeInterval)
	})
	if err != nil {
		return fmt.Errorf("scheduling interval scan: %w", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Following exposes the active follow set for display layers.
func (m *Monitor) Following() []string {
	return m.follows.ActiveKeys()
}

// cronLogger adapts slog to the cron logger interface so skipped ticks show
// up in debug output.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("scheduler: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("scheduler: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
