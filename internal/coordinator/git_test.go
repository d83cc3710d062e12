package coordinator

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
)

// gitCmd runs a git command in dir, failing the test on error.
func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, output)
}

// newTestRepo creates a bare origin plus a checkout for repoID under
// workspaceRoot, with one commit on main.
func newTestRepo(t *testing.T, workspaceRoot, repoID string) {
	t.Helper()

	originDir := filepath.Join(workspaceRoot, ".origins", repoID)
	repoDir := filepath.Join(workspaceRoot, repoID)

	gitCmd(t, workspaceRoot, "init", "--bare", "-b", "main", originDir)
	gitCmd(t, workspaceRoot, "clone", originDir, repoDir)
	gitCmd(t, repoDir, "-c", "user.email=test@loqalabs.com", "-c", "user.name=test",
		"commit", "--allow-empty", "-m", "initial commit")
	gitCmd(t, repoDir, "push", "origin", "HEAD:main")
	gitCmd(t, repoDir, "checkout", "-B", "main", "origin/main")
}

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		branch string
		valid  bool
	}{
		{"feature/coordinated-rename", true},
		{"fix-123", true},
		{"release/v0.4.0", true},
		{"", false},
		{"   ", false},
		{"feature//double", false},
		{"bad..name", false},
		{"spaces are bad", false},
		{"-leading", false},
	}

	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			err := ValidateBranchName(tt.branch)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeGitInvalidBranch, errors.CodeOf(err))
			}
		})
	}
}

func TestCreateBranch(t *testing.T) {
	root := t.TempDir()
	newTestRepo(t, root, "loqa-proto")
	g := NewGit(root, nil)
	ctx := context.Background()

	require.NoError(t, g.CreateBranch(ctx, "loqa-proto", "feature/new-events", "main"))

	branch, err := g.CurrentBranch(ctx, "loqa-proto")
	require.NoError(t, err)
	assert.Equal(t, "feature/new-events", branch)
}

func TestCreateBranchRefusesExisting(t *testing.T) {
	root := t.TempDir()
	newTestRepo(t, root, "loqa-proto")
	g := NewGit(root, nil)
	ctx := context.Background()

	require.NoError(t, g.CreateBranch(ctx, "loqa-proto", "feature/dup", "main"))
	gitCmd(t, filepath.Join(root, "loqa-proto"), "checkout", "main")

	err := g.CreateBranch(ctx, "loqa-proto", "feature/dup", "main")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGitBranchExists, errors.CodeOf(err))
}

func TestCreateBranchMissingRepo(t *testing.T) {
	g := NewGit(t.TempDir(), nil)

	err := g.CreateBranch(context.Background(), "loqa-hub", "feature/x", "main")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGitRepoMissing, errors.CodeOf(err))
}

func TestBranchExists(t *testing.T) {
	root := t.TempDir()
	newTestRepo(t, root, "loqa-proto")
	g := NewGit(root, nil)
	ctx := context.Background()

	assert.True(t, g.BranchExists(ctx, "loqa-proto", "main"))
	assert.False(t, g.BranchExists(ctx, "loqa-proto", "feature/absent"))
}
