package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/runfeed/runfeed/internal/models"
)

// CLI is a RunSource backed by the GitHub CLI. Each call shells out to gh
// and parses its --json output. List calls carry a per-call timeout;
// FollowRun is long-lived and bounded only by the caller's context.
type CLI struct {
	owner   string // empty = authenticated user
	timeout time.Duration
}

func NewCLI(owner string, timeout time.Duration) *CLI {
	return &CLI{owner: owner, timeout: timeout}
}

// CheckAuth verifies that gh is installed and authenticated. Called once at
// startup; a failure here is fatal to the process.
func CheckAuth(ctx context.Context) error {
	if _, err := exec.LookPath("gh"); err != nil {
		return fmt.Errorf("gh not found on PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, "gh", "auth", "status")
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("gh auth status failed: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *CLI) ListRepositories(ctx context.Context) ([]models.RepositoryRef, error) {
	args := []string{"repo", "list"}
	if c.owner != "" {
		args = append(args, c.owner)
	}
	args = append(args, "--limit", "1000", "--json", "name,owner,pushedAt")

	out, err := c.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	return parseRepoList(out)
}

func (c *CLI) ListRuns(ctx context.Context, owner, repo string, limit int) ([]models.RunRecord, error) {
	args := []string{
		"run", "list",
		"--repo", owner + "/" + repo,
		"--limit", strconv.Itoa(limit),
		"--json", "number,databaseId,displayTitle,status,conclusion,createdAt,updatedAt,headBranch,headSha",
	}

	out, err := c.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("listing runs for %s/%s: %w", owner, repo, err)
	}
	return parseRunList(owner, repo, out)
}

func (c *CLI) FollowRun(ctx context.Context, run models.RunRecord) error {
	cmd := exec.CommandContext(ctx, "gh",
		"run", "watch", strconv.FormatInt(run.DatabaseID, 10),
		"--repo", run.Owner+"/"+run.Repo,
	)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("watching %s: %s", run.Key(), strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *CLI) run(ctx context.Context, args []string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "gh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("gh %s: %s", args[0]+" "+args[1], msg)
	}
	return stdout.Bytes(), nil
}

type ghRepo struct {
	Name  string `json:"name"`
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
	PushedAt time.Time `json:"pushedAt"`
}

func parseRepoList(data []byte) ([]models.RepositoryRef, error) {
	var raw []ghRepo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing repo list: %w", err)
	}

	refs := make([]models.RepositoryRef, 0, len(raw))
	for _, r := range raw {
		refs = append(refs, models.RepositoryRef{
			Owner:    r.Owner.Login,
			Name:     r.Name,
			PushedAt: r.PushedAt,
		})
	}
	return refs, nil
}

type ghRun struct {
	Number       int64     `json:"number"`
	DatabaseID   int64     `json:"databaseId"`
	DisplayTitle string    `json:"displayTitle"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	HeadBranch   string    `json:"headBranch"`
	HeadSha      string    `json:"headSha"`
}

func parseRunList(owner, repo string, data []byte) ([]models.RunRecord, error) {
	var raw []ghRun
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing run list: %w", err)
	}

	runs := make([]models.RunRecord, 0, len(raw))
	for _, r := range raw {
		runs = append(runs, models.RunRecord{
			Owner:      owner,
			Repo:       repo,
			Number:     r.Number,
			DatabaseID: r.DatabaseID,
			Name:       r.DisplayTitle,
			Status:     models.RunStatus(r.Status),
			Conclusion: models.RunConclusion(r.Conclusion),
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
			Branch:     r.HeadBranch,
			Commit:     r.HeadSha,
		})
	}
	return runs, nil
}
