package models

import "time"

// RepositoryRef drives per-scan fan-out. It is refetched on every scan and
// never persisted.
type RepositoryRef struct {
	Owner    string
	Name     string
	PushedAt time.Time
}

func (r RepositoryRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// DisplayMode selects how a scan's output is filtered and presented: the
// unconditional startup load, or the windowed incremental feed.
type DisplayMode int

const (
	ModeFirst DisplayMode = iota
	ModeInterval
)

func (m DisplayMode) String() string {
	switch m {
	case ModeFirst:
		return "first"
	case ModeInterval:
		return "interval"
	default:
		return "unknown"
	}
}
