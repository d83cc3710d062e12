package coordinator

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/loqalabs/loqa-coordinator/internal/config"
	"github.com/loqalabs/loqa-coordinator/internal/graph"
)

// CheckResult is the outcome of one quality check in one repository.
type CheckResult struct {
	Name     string        `json:"name"`
	Command  string        `json:"command"`
	Required bool          `json:"required"`
	Success  bool          `json:"success"`
	Fixed    bool          `json:"fixed,omitempty"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

// qualityChecks resolves the configured checks for a repository, falling
// back to the node's quality command when nothing is configured.
func (c *Coordinator) qualityChecks(node *graph.RepositoryNode) []config.QualityCheck {
	if checks, ok := c.config.QualityChecks[node.ID]; ok {
		return checks
	}
	if node.QualityCmd != "" {
		return []config.QualityCheck{{
			Name:     "quality",
			Command:  node.QualityCmd,
			Required: true,
		}}
	}
	return nil
}

// runCheck executes one check command in the repository's directory.
func (c *Coordinator) runCheck(ctx context.Context, repoID string, check config.QualityCheck, fix bool) CheckResult {
	result := CheckResult{
		Name:     check.Name,
		Command:  check.Command,
		Required: check.Required,
	}

	start := time.Now()
	output, err := c.runShell(ctx, repoID, check.Command)
	result.Duration = time.Since(start)
	result.Output = output
	result.Success = err == nil

	// One autofix pass, then one re-run of the original check.
	if !result.Success && fix && check.AutofixCommand != "" {
		if _, fixErr := c.runShell(ctx, repoID, check.AutofixCommand); fixErr == nil {
			output, err = c.runShell(ctx, repoID, check.Command)
			result.Output = output
			result.Success = err == nil
			result.Fixed = result.Success
			result.Duration = time.Since(start)
		}
	}

	return result
}

// runShell executes a configured command line through the shell with the
// repository root as working directory.
func (c *Coordinator) runShell(ctx context.Context, repoID, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = c.git.RepoPath(repoID)

	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}
