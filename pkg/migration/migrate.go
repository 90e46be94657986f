package migration

import (
	"context"
	"fmt"

	"github.com/krrrr38/github-2-github/pkg/logger"
	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/state"
)

// DiscoverNewItems lists open source items of the enabled kinds that state has neither imported nor errored.
// A failed listing is logged and yields no items of that kind.
func (c *Coordinator) DiscoverNewItems(ctx context.Context, st *state.MigrationState, report *Report) ([]*model.Item, []*model.Item, error) {
	var issues, prs []*model.Item
	for _, kind := range c.opts.kinds() {
		items, err := c.listItems(ctx, c.source, kind, "open")
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			logger.Error("Failed to list source items", "kind", kind, "error", err)
			report.DiscoveryErrors++
			continue
		}
		var fresh []*model.Item
		for _, item := range items {
			if st.IsKnown(kind, item.Key()) {
				continue
			}
			fresh = append(fresh, item)
		}
		logger.Info("Discovered new items", "kind", kind, "open", len(items), "new", len(fresh))
		if kind == model.KindPullRequest {
			prs = fresh
		} else {
			issues = fresh
		}
	}
	report.NewIssues = len(issues)
	report.NewPRs = len(prs)
	return issues, prs, nil
}

// MigrateIssue creates the destination issue and replicates its comments
func (c *Coordinator) MigrateIssue(ctx context.Context, st *state.MigrationState, issue *model.Item) Outcome {
	logger.Info("Migrating issue", "number", issue.Number, "title", issue.Title)

	created, err := c.dest.CreateIssue(ctx, &model.NewIssue{
		Title:  issue.Title,
		Body:   itemBody(c.source.FullName(), model.KindIssue, issue),
		Labels: issueLabels(c.opts.IssueLabel, issue.Labels),
	})
	if err != nil {
		return c.fail(ctx, st, model.KindIssue, issue.Number, err)
	}
	logger.Info("Created issue", "source", issue.Number, "destination", created.Number, "url", created.HTMLURL)

	if err := c.replicateDiscussion(ctx, model.KindIssue, issue.Number, created.Number); err != nil {
		return c.fail(ctx, st, model.KindIssue, issue.Number,
			fmt.Errorf("issue #%d created but replication failed: %w", created.Number, err))
	}

	st.RecordImport(model.KindIssue, issue.Key(), created.Number, model.StateOpen)
	if err := c.persist(st); err != nil {
		return Outcome{Kind: OutcomeFatal, Source: issue.Number, Destination: created.Number, Err: err}
	}
	return Outcome{Kind: OutcomeSuccess, Source: issue.Number, Destination: created.Number}
}

// MigratePullRequest moves the head to a destination branch, opens the pull request and replicates its discussion
func (c *Coordinator) MigratePullRequest(ctx context.Context, st *state.MigrationState, pr *model.Item) Outcome {
	logger.Info("Migrating pull request", "number", pr.Number, "title", pr.Title)

	if c.opts.Interactive {
		ok, err := c.confirm(func() (bool, error) { return c.prompter.ConfirmPullRequest(pr) })
		if err != nil {
			return Outcome{Kind: OutcomeFatal, Source: pr.Number, Err: err}
		}
		if !ok {
			logger.Info("Skipping PR creation", "number", pr.Number)
			return Outcome{Kind: OutcomeSkipped, Source: pr.Number}
		}
	}

	branch := c.opts.branchName(pr.Number)
	if err := c.git.FetchPullRequest(ctx, pr.Number, branch); err != nil {
		return c.fail(ctx, st, model.KindPullRequest, pr.Number, err)
	}
	if err := c.git.PushBranch(ctx, branch); err != nil {
		return c.fail(ctx, st, model.KindPullRequest, pr.Number, err)
	}

	created, err := c.openPullRequest(ctx, pr, branch)
	if err != nil {
		return c.fail(ctx, st, model.KindPullRequest, pr.Number, err)
	}
	logger.Info("Created pull request", "source", pr.Number, "destination", created.Number, "url", created.HTMLURL)

	if err := c.replicateDiscussion(ctx, model.KindPullRequest, pr.Number, created.Number); err != nil {
		return c.fail(ctx, st, model.KindPullRequest, pr.Number,
			fmt.Errorf("pull request #%d created but replication failed: %w", created.Number, err))
	}

	st.RecordImport(model.KindPullRequest, pr.Key(), created.Number, model.StateOpen)
	if err := c.persist(st); err != nil {
		return Outcome{Kind: OutcomeFatal, Source: pr.Number, Destination: created.Number, Err: err}
	}
	return Outcome{Kind: OutcomeSuccess, Source: pr.Number, Destination: created.Number}
}

// openPullRequest creates the destination pull request, retrying once with an owner-qualified head
func (c *Coordinator) openPullRequest(ctx context.Context, pr *model.Item, branch string) (*model.Item, error) {
	input := &model.NewPullRequest{
		Title: importedTitlePrefix + pr.Title,
		Body:  itemBody(c.source.FullName(), model.KindPullRequest, pr),
		Head:  branch,
		Base:  c.opts.Base,
	}
	created, err := c.dest.CreatePullRequest(ctx, input)
	if err == nil {
		return created, nil
	}
	if c.interrupted(ctx, err) {
		return nil, err
	}

	qualified := c.dest.Owner() + ":" + branch
	logger.Warn("Failed to create PR, retrying with qualified head", "head", qualified, "error", err)
	input.Head = qualified
	created, retryErr := c.dest.CreatePullRequest(ctx, input)
	if retryErr != nil {
		return nil, fmt.Errorf("failed to create pull request: %v; with head %s: %w", err, qualified, retryErr)
	}
	return created, nil
}

// replicateDiscussion copies comments, and for pull requests reviews, onto the destination item
func (c *Coordinator) replicateDiscussion(ctx context.Context, kind model.ItemKind, srcNum, dstNum int) error {
	comments, err := c.source.ListIssueComments(ctx, srcNum)
	if err != nil {
		return err
	}
	for _, comment := range comments {
		if err := c.dest.CreateComment(ctx, dstNum, commentBody(comment)); err != nil {
			return err
		}
	}
	logger.Debug("Replicated comments", "source", srcNum, "destination", dstNum, "count", len(comments))

	if kind != model.KindPullRequest {
		return nil
	}
	reviews, err := c.source.ListReviews(ctx, srcNum)
	if err != nil {
		return err
	}
	for _, review := range reviews {
		if err := c.dest.CreateComment(ctx, dstNum, reviewBody(review)); err != nil {
			return err
		}
	}
	logger.Debug("Replicated reviews", "source", srcNum, "destination", dstNum, "count", len(reviews))
	return nil
}
