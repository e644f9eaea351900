package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/runfeed/runfeed/internal/config"
	"github.com/runfeed/runfeed/internal/logging"
	"github.com/runfeed/runfeed/internal/models"
	"github.com/runfeed/runfeed/internal/monitor"
	"github.com/runfeed/runfeed/internal/render"
	"github.com/runfeed/runfeed/internal/source"
	"github.com/runfeed/runfeed/internal/tui"
)

const version = "0.2.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "runfeed",
		Short: "A live feed of CI runs across your repositories",
		Long: "Runfeed polls GitHub Actions runs across every repository you own,\n" +
			"prints newly observed runs in chronological order, and follows\n" +
			"in-progress runs until they finish.",
		RunE: runConsole,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config (optional)")
	rootCmd.PersistentFlags().IntP("interval", "i", 0, "Scan interval in minutes (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose diagnostics")
	rootCmd.PersistentFlags().String("owner", "", "Account or organization to scan (default: authenticated user)")

	rootCmd.AddCommand(newTUICommand())
	rootCmd.AddCommand(newScanCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup builds the effective config from file + flags, installs the logger,
// and verifies the gh collaborator is usable. Auth failure here is the one
// fatal startup path.
func setup(cmd *cobra.Command) (*config.Config, *source.CLI, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v, _ := cmd.Flags().GetInt("interval"); v > 0 {
		cfg.IntervalMinutes = v
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Verbose = true
	}
	if v, _ := cmd.Flags().GetString("owner"); v != "" {
		cfg.Owner = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logging.Init(cfg.Verbose)

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := source.CheckAuth(cmd.Context()); err != nil {
		return nil, nil, err
	}

	return cfg, source.NewCLI(cfg.Owner, cfg.FetchTimeout()), nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, src, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := monitor.New(cfg, src, render.NewConsole(os.Stdout))
	if err := m.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newTUICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the feed as an interactive dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, src, err := setup(cmd)
			if err != nil {
				return err
			}

			app := tui.NewApp()
			p := tea.NewProgram(app, tea.WithAltScreen())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sink := tui.NewSink(p)
			m := monitor.New(cfg, src, sink)
			app.SetRescan(func() {
				// Scan failures surface through the sink like any
				// scheduled scan's.
				_ = m.RunScan(ctx, models.ModeInterval)
			})

			go func() {
				if err := m.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					sink.ScanFailed(err)
				}
			}()

			_, err = p.Run()
			return err
		},
	}
}

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single full scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, src, err := setup(cmd)
			if err != nil {
				return err
			}

			// Cancelling before exit tears down any watch process a
			// one-shot scan may have spawned for in-progress runs.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			m := monitor.New(cfg, src, render.NewConsole(os.Stdout))
			return m.RunScan(ctx, models.ModeFirst)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the runfeed version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("runfeed", version)
		},
	}
}
