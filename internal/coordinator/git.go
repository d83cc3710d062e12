package coordinator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/log"
)

var branchNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(?:[._/-][a-zA-Z0-9_]+)*$`)

// ValidateBranchName checks whether a branch name is acceptable for use.
func ValidateBranchName(branch string) error {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return errors.New(errors.ErrCodeGitInvalidBranch, "branch name cannot be empty")
	}
	if !branchNamePattern.MatchString(branch) {
		return errors.New(errors.ErrCodeGitInvalidBranch,
			fmt.Sprintf("branch name %q does not match the required format (alphanumeric, underscores, hyphens, forward slashes, or periods)", branch))
	}
	for i := 0; i < len(branch)-1; i++ {
		if branch[i] == branch[i+1] && (branch[i] == '-' || branch[i] == '.' || branch[i] == '/' || branch[i] == '_') {
			return errors.New(errors.ErrCodeGitInvalidBranch,
				fmt.Sprintf("branch name %q has consecutive separators", branch))
		}
	}
	return nil
}

// Git runs repository-scoped git subprocesses with the repository's root
// directory as working directory. Repositories are expected as direct
// children of the workspace root, named by their identifier.
type Git struct {
	workspaceRoot string
	logger        *log.Logger
}

// NewGit creates a Git helper rooted at workspaceRoot.
func NewGit(workspaceRoot string, logger *log.Logger) *Git {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Git{workspaceRoot: workspaceRoot, logger: logger}
}

// RepoPath returns the checkout directory for a repository.
func (g *Git) RepoPath(repoID string) string {
	return filepath.Join(g.workspaceRoot, repoID)
}

// ensureRepo verifies the repository checkout exists and is a git repo.
func (g *Git) ensureRepo(repoID string) error {
	path := g.RepoPath(repoID)
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return errors.Wrap(errors.ErrCodeGitRepoMissing,
			fmt.Sprintf("repository %s not found at %s", repoID, path), err).
			WithSuggestion("Clone the repository into the workspace root").
			WithSuggestion("Check workspace_root in the coordinator config")
	}
	return nil
}

// run executes one git command in the repository's directory.
func (g *Git) run(ctx context.Context, repoID string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoPath(repoID)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGitCommandFailed,
			fmt.Sprintf("git %s failed in %s: %s",
				strings.Join(args, " "), repoID, strings.TrimSpace(string(output))), err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Fetch updates remote tracking refs for the repository.
func (g *Git) Fetch(ctx context.Context, repoID string) error {
	_, err := g.run(ctx, repoID, "fetch", "origin")
	return err
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context, repoID string) (string, error) {
	return g.run(ctx, repoID, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists reports whether a local branch already exists.
func (g *Git) BranchExists(ctx context.Context, repoID, branch string) bool {
	_, err := g.run(ctx, repoID, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// CreateBranch creates branch off base: fetch, check out the base branch,
// fast-forward it, then branch. Refuses to clobber an existing branch.
func (g *Git) CreateBranch(ctx context.Context, repoID, branch, base string) error {
	if err := ValidateBranchName(branch); err != nil {
		return err
	}
	if err := g.ensureRepo(repoID); err != nil {
		return err
	}

	if err := g.Fetch(ctx, repoID); err != nil {
		return err
	}

	if g.BranchExists(ctx, repoID, branch) {
		return errors.New(errors.ErrCodeGitBranchExists,
			fmt.Sprintf("branch %s already exists in %s", branch, repoID)).
			WithSuggestion("Pick a different branch name or delete the stale branch")
	}

	if _, err := g.run(ctx, repoID, "checkout", base); err != nil {
		return err
	}
	if _, err := g.run(ctx, repoID, "pull", "--ff-only", "origin", base); err != nil {
		return err
	}
	if _, err := g.run(ctx, repoID, "checkout", "-b", branch); err != nil {
		return err
	}

	g.logger.Info("created branch",
		"repository", repoID,
		"branch", branch,
		"base", base)
	return nil
}
