package render

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/runfeed/runfeed/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusQueued    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	statusSuccess   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailure   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusCancelled = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Console prints one line per run to w. It implements monitor.Sink.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) ScanCompleted(mode models.DisplayMode, runs []models.RunRecord) {
	if mode == models.ModeFirst {
		fmt.Fprintln(c.w, titleStyle.Render("runfeed")+dimStyle.Render(fmt.Sprintf("  latest %d runs", len(runs))))
	}
	if mode == models.ModeInterval && len(runs) == 0 {
		return
	}

	for _, run := range runs {
		fmt.Fprintln(c.w, FormatRunLine(run))
	}
}

func (c *Console) ScanFailed(err error) {
	fmt.Fprintln(c.w, errStyle.Render("scan failed: ")+err.Error())
}

func (c *Console) FollowStarted(run models.RunRecord) {
	fmt.Fprintln(c.w, statusRunning.Render("⇢ following ")+run.Key()+dimStyle.Render("  "+run.WebURL()))
}

func (c *Console) FollowEnded(run models.RunRecord, err error) {
	if err != nil {
		fmt.Fprintln(c.w, errStyle.Render("⇠ lost ")+run.Key())
		return
	}
	fmt.Fprintln(c.w, dimStyle.Render("⇠ finished ")+run.Key())
}

// FormatRunLine renders one run as a feed line, e.g.
// "✓ success   5m   acme/api#311  Deploy to staging  (main)".
func FormatRunLine(run models.RunRecord) string {
	return fmt.Sprintf("%s  %-4s  %-28s %s  %s",
		FormatStatus(run),
		FormatAge(run.CreatedAt),
		run.Key(),
		Truncate(run.Name, 50),
		dimStyle.Render("("+run.Branch+")"))
}

func FormatStatus(run models.RunRecord) string {
	switch run.Status {
	case models.RunStatusQueued:
		return statusQueued.Render("○ queued   ")
	case models.RunStatusInProgress:
		return statusRunning.Render("● running  ")
	case models.RunStatusCompleted:
		switch run.Conclusion {
		case models.RunConclusionSuccess:
			return statusSuccess.Render("✓ success  ")
		case models.RunConclusionFailure:
			return statusFailure.Render("✗ failure  ")
		case models.RunConclusionCancelled:
			return statusCancelled.Render("⊘ cancelled")
		}
	}
	return string(run.Status)
}

func FormatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// Truncate cuts s to at most maxLen runes, ending with "..." when anything
// was dropped.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
