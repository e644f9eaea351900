package tui

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runfeed/runfeed/internal/models"
	"github.com/runfeed/runfeed/internal/render"
)

const maxFeedLen = 200

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	followStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// App is the dashboard model: a chronological feed of observed runs plus the
// set of runs currently being followed. Scan results and follow events
// arrive as messages sent by the monitor through Sink.
type App struct {
	feed      []models.RunRecord
	following map[string]struct{}

	// rescan requests one on-demand scan from the monitor; its results
	// arrive later through Sink like any scheduled scan's.
	rescan func()

	selectedIdx int
	spin        spinner.Model
	width       int
	height      int
	err         error
}

func NewApp() *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = followStyle
	return &App{
		following: make(map[string]struct{}),
		spin:      s,
	}
}

// SetRescan wires the reload key to the monitor. Must be called before the
// program starts.
func (a *App) SetRescan(rescan func()) {
	a.rescan = rescan
}

func (a *App) Init() tea.Cmd {
	return a.spin.Tick
}

// Messages

type scanMsg struct {
	mode models.DisplayMode
	runs []models.RunRecord
}

type scanFailedMsg struct{ err error }

type followStartedMsg struct{ run models.RunRecord }

type followEndedMsg struct{ run models.RunRecord }

type openedMsg struct{ err error }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case scanMsg:
		a.err = nil
		if msg.mode == models.ModeFirst {
			a.feed = msg.runs
		} else {
			a.feed = append(append([]models.RunRecord{}, msg.runs...), a.feed...)
			if len(a.feed) > maxFeedLen {
				a.feed = a.feed[:maxFeedLen]
			}
		}
		if a.selectedIdx >= len(a.feed) && a.selectedIdx > 0 {
			a.selectedIdx = len(a.feed) - 1
		}
		return a, nil

	case scanFailedMsg:
		a.err = msg.err
		return a, nil

	case followStartedMsg:
		a.following[msg.run.Key()] = struct{}{}
		return a, nil

	case followEndedMsg:
		delete(a.following, msg.run.Key())
		a.refreshStatus(msg.run)
		return a, nil

	case openedMsg:
		a.err = msg.err
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	return a, nil
}

// refreshStatus marks a finished run completed in the feed. The follow
// primitive only reports termination, so the conclusion stays as-is until
// the run shows up in a later fetch.
func (a *App) refreshStatus(run models.RunRecord) {
	for i := range a.feed {
		if a.feed[i].Key() == run.Key() {
			a.feed[i].Status = models.RunStatusCompleted
			return
		}
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.feed)-1 {
			a.selectedIdx++
		}

	case "enter", "o":
		if len(a.feed) > 0 && a.selectedIdx < len(a.feed) {
			return a, openRun(a.feed[a.selectedIdx])
		}

	case "r":
		if a.rescan != nil {
			rescan := a.rescan
			return a, func() tea.Msg {
				rescan()
				return nil
			}
		}
	}

	return a, nil
}

// openRun opens the selected run in the browser via gh.
func openRun(run models.RunRecord) tea.Cmd {
	return func() tea.Msg {
		cmd := exec.Command("gh", "run", "view", "--web",
			strconv.FormatInt(run.DatabaseID, 10),
			"--repo", run.Owner+"/"+run.Repo)
		return openedMsg{err: cmd.Run()}
	}
}

func (a *App) View() string {
	s := titleStyle.Render("runfeed") + "\n"

	if len(a.following) > 0 {
		s += a.spin.View() + followStyle.Render(fmt.Sprintf(" following %d run(s)", len(a.following))) + "\n"
	}
	s += "\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n\n", a.err)
	}

	if len(a.feed) == 0 {
		s += dimStyle.Render("Waiting for the first scan...") + "\n"
	}

	visible := a.feed
	if max := a.height - 8; max > 0 && len(visible) > max {
		visible = visible[:max]
	}

	for i, run := range visible {
		line := render.FormatRunLine(run)
		if _, ok := a.following[run.Key()]; ok {
			line = a.spin.View() + " " + line
		}
		if i == a.selectedIdx {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		s += line + "\n"
	}

	s += "\n" + helpStyle.Render("[↑/↓] select  [enter/o] open in browser  [r] rescan  [q] quit")
	return s
}

// Sink forwards monitor events into the running bubbletea program. It
// implements monitor.Sink.
type Sink struct {
	p *tea.Program
}

func NewSink(p *tea.Program) *Sink {
	return &Sink{p: p}
}

func (s *Sink) ScanCompleted(mode models.DisplayMode, runs []models.RunRecord) {
	s.p.Send(scanMsg{mode: mode, runs: runs})
}

func (s *Sink) ScanFailed(err error) {
	s.p.Send(scanFailedMsg{err: err})
}

func (s *Sink) FollowStarted(run models.RunRecord) {
	s.p.Send(followStartedMsg{run: run})
}

func (s *Sink) FollowEnded(run models.RunRecord, err error) {
	s.p.Send(followEndedMsg{run: run})
}
