package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/krrrr38/github-2-github/pkg/logger"
	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/prompt"
	"github.com/krrrr38/github-2-github/pkg/state"
)

// ErrPersist wraps state file write failures, which abort the run
var ErrPersist = errors.New("failed to persist state")

// ErrPrompt wraps confirmation failures, which abort the run without recording the item
var ErrPrompt = errors.New("confirmation prompt failed")

// Coordinator copies issues and pull requests from a source repository to a destination repository
type Coordinator struct {
	opts     Options
	source   Tracker
	dest     Tracker
	git      GitRunner
	store    StateStore
	prompter Prompter
	now      func() time.Time
}

// NewCoordinator wires the collaborators of a run. prompter may be nil unless opts.Interactive is set.
func NewCoordinator(opts Options, source, dest Tracker, git GitRunner, store StateStore, prompter Prompter) *Coordinator {
	return &Coordinator{
		opts:     opts,
		source:   source,
		dest:     dest,
		git:      git,
		store:    store,
		prompter: prompter,
		now:      time.Now,
	}
}

// Run executes one import pass over st. It returns early on cancellation, prompt abort or a state write failure.
func (c *Coordinator) Run(ctx context.Context, st *state.MigrationState) (*Report, error) {
	report := &Report{DryRun: c.opts.DryRun}
	if c.opts.Interactive && c.prompter == nil {
		return report, errors.New("interactive mode requires a prompter")
	}

	if err := c.preflight(ctx); err != nil {
		return report, err
	}

	if err := c.ScanDestination(ctx, st, report); err != nil {
		return report, err
	}
	if err := c.ReconcileExistingImports(ctx, st, report); err != nil {
		return report, err
	}
	if c.opts.SyncOnly {
		logger.Info("Sync only, skipping discovery")
		report.log()
		return report, nil
	}

	if c.opts.ImportPRs {
		if err := c.ReconcileOrphanedBranches(ctx, st, report); err != nil {
			return report, err
		}
	}

	issues, prs, err := c.DiscoverNewItems(ctx, st, report)
	if err != nil {
		return report, err
	}
	if c.opts.DryRun {
		logger.Info("Dry run, nothing will be created", "new_issues", len(issues), "new_prs", len(prs))
		for _, issue := range issues {
			logger.Info("Would import issue", "number", issue.Number, "title", issue.Title)
		}
		for _, pr := range prs {
			logger.Info("Would import pull request", "number", pr.Number, "title", pr.Title, "branch", c.opts.branchName(pr.Number))
		}
		report.log()
		return report, nil
	}

	for i, issue := range issues {
		out := c.MigrateIssue(ctx, st, issue)
		report.Issues.Add(out)
		if err := c.abortCause(ctx, out.Err); err != nil {
			return report, err
		}
		logger.Info("Progress", "kind", model.KindIssue, "processed", i+1, "target", len(issues),
			"succeeded", report.Issues.Success, "failed", report.Issues.Fatal)
	}
	for i, pr := range prs {
		out := c.MigratePullRequest(ctx, st, pr)
		report.PRs.Add(out)
		if err := c.abortCause(ctx, out.Err); err != nil {
			return report, err
		}
		logger.Info("Progress", "kind", model.KindPullRequest, "processed", i+1, "target", len(prs),
			"succeeded", report.PRs.Success, "skipped", report.PRs.Skipped, "failed", report.PRs.Fatal)
	}

	report.log()
	return report, nil
}

// preflight checks both repositories and, when branches will be pushed, the local clone
func (c *Coordinator) preflight(ctx context.Context) error {
	if err := c.source.CheckExists(ctx); err != nil {
		return fmt.Errorf("source repository check failed: %w", err)
	}
	if err := c.dest.CheckExists(ctx); err != nil {
		return fmt.Errorf("destination repository check failed: %w", err)
	}
	if c.opts.ImportPRs && !c.opts.DryRun && !c.opts.SyncOnly {
		if err := c.git.Preflight(ctx); err != nil {
			return fmt.Errorf("local repository check failed: %w", err)
		}
	}
	return nil
}

// persist writes st unless this is a dry run
func (c *Coordinator) persist(st *state.MigrationState) error {
	if c.opts.DryRun {
		return nil
	}
	if err := c.store.Save(st); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// interrupted reports whether err stops the whole run rather than one item
func (c *Coordinator) interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, prompt.ErrAborted) || errors.Is(err, ErrPrompt)
}

// abortCause returns the error that must stop Run, if any
func (c *Coordinator) abortCause(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, prompt.ErrAborted) || errors.Is(err, ErrPrompt) || errors.Is(err, ErrPersist) {
		return err
	}
	return nil
}

// fail records err against the item unless it is an interruption
func (c *Coordinator) fail(ctx context.Context, st *state.MigrationState, kind model.ItemKind, number int, err error) Outcome {
	out := Outcome{Kind: OutcomeFatal, Source: number, Err: err}
	if c.interrupted(ctx, err) {
		return out
	}
	logger.Error("Failed to migrate item", "kind", kind, "number", number, "error", err)
	st.RecordError(kind, state.Key(number), err, c.now())
	if perr := c.persist(st); perr != nil {
		out.Err = perr
	}
	return out
}

// confirm runs a prompter call and wraps its failure in ErrPrompt
func (c *Coordinator) confirm(ask func() (bool, error)) (bool, error) {
	ok, err := ask()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPrompt, err)
	}
	return ok, nil
}

func (c *Coordinator) getItem(ctx context.Context, t Tracker, kind model.ItemKind, number int) (*model.Item, error) {
	if kind == model.KindPullRequest {
		return t.GetPullRequest(ctx, number)
	}
	return t.GetIssue(ctx, number)
}

func (c *Coordinator) listItems(ctx context.Context, t Tracker, kind model.ItemKind, itemState string) ([]*model.Item, error) {
	if kind == model.KindPullRequest {
		return t.ListPullRequests(ctx, itemState)
	}
	return t.ListIssues(ctx, itemState)
}

func (c *Coordinator) closeItem(ctx context.Context, t Tracker, kind model.ItemKind, number int) error {
	if kind == model.KindPullRequest {
		return t.ClosePullRequest(ctx, number)
	}
	return t.CloseIssue(ctx, number)
}
