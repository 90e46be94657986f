package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/krrrr38/github-2-github/pkg/logger"
	"github.com/krrrr38/github-2-github/pkg/utils"
)

// Git runs git commands in a local clone that has both the source and the destination as remotes
type Git struct {
	workingDir   string
	sourceRemote string
	destRemote   string
	timeout      time.Duration
}

func NewGit(workingDir, sourceRemote, destRemote string, timeout time.Duration) *Git {
	return &Git{
		workingDir:   workingDir,
		sourceRemote: sourceRemote,
		destRemote:   destRemote,
		timeout:      timeout,
	}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	return utils.ExecuteCommand(ctx, g.workingDir, g.timeout, "git", args...)
}

// Preflight checks that the working directory is a git work tree with both remotes configured
func (g *Git) Preflight(ctx context.Context) error {
	out, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return fmt.Errorf("%s is not a git repository: %w", g.workingDir, err)
	}
	if out != "true" {
		return fmt.Errorf("%s is not a git work tree", g.workingDir)
	}

	remotes, err := g.run(ctx, "remote")
	if err != nil {
		return fmt.Errorf("failed to list git remotes: %w", err)
	}
	known := map[string]bool{}
	for _, r := range strings.Fields(remotes) {
		known[r] = true
	}
	for _, want := range []string{g.sourceRemote, g.destRemote} {
		if !known[want] {
			return fmt.Errorf("git remote %q is not configured in %s", want, g.workingDir)
		}
	}
	return nil
}

// FetchPullRequest fetches pull/{number}/head from the source remote into a local branch
func (g *Git) FetchPullRequest(ctx context.Context, number int, branch string) error {
	logger.Info("Fetching pull request", "remote", g.sourceRemote, "number", number, "branch", branch)
	refspec := fmt.Sprintf("pull/%d/head:%s", number, branch)
	if _, err := g.run(ctx, "fetch", g.sourceRemote, refspec); err != nil {
		return fmt.Errorf("failed to fetch pull request #%d: %w", number, err)
	}
	return nil
}

// PushBranch pushes a local branch to the destination remote
func (g *Git) PushBranch(ctx context.Context, branch string) error {
	logger.Info("Pushing branch", "remote", g.destRemote, "branch", branch)
	if _, err := g.run(ctx, "push", g.destRemote, branch); err != nil {
		return fmt.Errorf("failed to push branch %s: %w", branch, err)
	}
	return nil
}
