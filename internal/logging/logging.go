package logging

import (
	"log/slog"
	"os"
)

// Init installs the process-wide logger. Verbose enables debug output,
// which is where per-repository fetch failures are reported.
func Init(verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	if verbose {
		lvl = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
