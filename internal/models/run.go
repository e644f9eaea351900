package models

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
)

type RunConclusion string

const (
	RunConclusionSuccess   RunConclusion = "success"
	RunConclusionFailure   RunConclusion = "failure"
	RunConclusionCancelled RunConclusion = "cancelled"
	RunConclusionNone      RunConclusion = ""
)

// RunRecord is one CI/CD workflow execution. (Owner, Repo, Number) identifies
// the same logical run across rescans; DatabaseID is only used for external
// linking.
type RunRecord struct {
	Owner      string
	Repo       string
	Number     int64
	DatabaseID int64
	Name       string
	Status     RunStatus
	Conclusion RunConclusion
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Branch     string
	Commit     string
}

// Key returns the stable identity "owner/repo#number" used for dedupe and
// follow-session bookkeeping.
func (r RunRecord) Key() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

func (r RunRecord) WebURL() string {
	return fmt.Sprintf("https://github.com/%s/%s/actions/runs/%d", r.Owner, r.Repo, r.DatabaseID)
}

func (r RunRecord) InProgress() bool {
	return r.Status == RunStatusInProgress
}
