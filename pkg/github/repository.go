package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	githublib "github.com/google/go-github/v70/github"
	"github.com/krrrr38/github-2-github/pkg/config"
	"github.com/krrrr38/github-2-github/pkg/logger"
	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/utils"
	"github.com/shurcooL/githubv4"
)

const perPage = 100

// Repository is a Client bound to one owner/name
type Repository struct {
	client *Client
	owner  string
	name   string
}

// Repository binds the client to fullName ("owner/name")
func (client *Client) Repository(fullName string) (*Repository, error) {
	owner, name, err := config.SplitRepo(fullName)
	if err != nil {
		return nil, err
	}
	return &Repository{client: client, owner: owner, name: name}, nil
}

func (r *Repository) Owner() string {
	return r.owner
}

func (r *Repository) FullName() string {
	return r.owner + "/" + r.name
}

// wrapNotFound tags 404 responses with model.ErrNotFound
func wrapNotFound(err error) error {
	if err != nil && statusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	}
	return err
}

// CheckExists verifies the repository is visible with the current credentials
func (r *Repository) CheckExists(ctx context.Context) error {
	err := r.client.retry(ctx, func() error {
		_, _, err := r.client.GetInner().Repositories.Get(ctx, r.owner, r.name)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to get repository %s: %w", r.FullName(), wrapNotFound(err))
	}
	return nil
}

func (r *Repository) GetIssue(ctx context.Context, number int) (*model.Item, error) {
	var issue *githublib.Issue
	err := r.client.retry(ctx, func() error {
		var err error
		issue, _, err = r.client.GetInner().Issues.Get(ctx, r.owner, r.name, number)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %s#%d: %w", r.FullName(), number, wrapNotFound(err))
	}
	return issueToItem(issue), nil
}

func (r *Repository) GetPullRequest(ctx context.Context, number int) (*model.Item, error) {
	var pr *githublib.PullRequest
	err := r.client.retry(ctx, func() error {
		var err error
		pr, _, err = r.client.GetInner().PullRequests.Get(ctx, r.owner, r.name, number)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request %s#%d: %w", r.FullName(), number, wrapNotFound(err))
	}
	return pullToItem(pr), nil
}

// ListIssues lists issues (not pull requests) in state "open", "closed" or "all"
func (r *Repository) ListIssues(ctx context.Context, state string) ([]*model.Item, error) {
	var ret []*model.Item
	opts := &githublib.IssueListByRepoOptions{
		State:       state,
		ListOptions: githublib.ListOptions{PerPage: perPage},
	}
	for {
		var issues []*githublib.Issue
		var resp *githublib.Response
		err := r.client.retry(ctx, func() error {
			var err error
			issues, resp, err = r.client.GetInner().Issues.ListByRepo(ctx, r.owner, r.name, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list issues of %s: %w", r.FullName(), err)
		}
		for _, issue := range issues {
			// the issues API also returns pull requests
			if issue.IsPullRequest() {
				continue
			}
			ret = append(ret, issueToItem(issue))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return ret, nil
}

// ListPullRequests lists pull requests in state "open", "closed" or "all"
func (r *Repository) ListPullRequests(ctx context.Context, state string) ([]*model.Item, error) {
	var ret []*model.Item
	opts := &githublib.PullRequestListOptions{
		State:       state,
		ListOptions: githublib.ListOptions{PerPage: perPage},
	}
	for {
		var prs []*githublib.PullRequest
		var resp *githublib.Response
		err := r.client.retry(ctx, func() error {
			var err error
			prs, resp, err = r.client.GetInner().PullRequests.List(ctx, r.owner, r.name, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests of %s: %w", r.FullName(), err)
		}
		for _, pr := range prs {
			ret = append(ret, pullToItem(pr))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return ret, nil
}

// ListIssueComments lists the conversation comments of an issue or a pull request
func (r *Repository) ListIssueComments(ctx context.Context, number int) ([]*model.Comment, error) {
	var ret []*model.Comment
	opts := &githublib.IssueListCommentsOptions{
		ListOptions: githublib.ListOptions{PerPage: perPage},
	}
	for {
		var comments []*githublib.IssueComment
		var resp *githublib.Response
		err := r.client.retry(ctx, func() error {
			var err error
			comments, resp, err = r.client.GetInner().Issues.ListComments(ctx, r.owner, r.name, number, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list comments of %s#%d: %w", r.FullName(), number, err)
		}
		for _, c := range comments {
			ret = append(ret, &model.Comment{Author: c.GetUser().GetLogin(), Body: c.GetBody()})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return ret, nil
}

func (r *Repository) ListReviews(ctx context.Context, number int) ([]*model.Review, error) {
	var ret []*model.Review
	opts := &githublib.ListOptions{PerPage: perPage}
	for {
		var reviews []*githublib.PullRequestReview
		var resp *githublib.Response
		err := r.client.retry(ctx, func() error {
			var err error
			reviews, resp, err = r.client.GetInner().PullRequests.ListReviews(ctx, r.owner, r.name, number, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list reviews of %s#%d: %w", r.FullName(), number, err)
		}
		for _, rv := range reviews {
			ret = append(ret, &model.Review{Author: rv.GetUser().GetLogin(), State: rv.GetState(), Body: rv.GetBody()})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return ret, nil
}

func (r *Repository) CreateIssue(ctx context.Context, input *model.NewIssue) (*model.Item, error) {
	logger.Debug("Creating GitHub issue", "repo", r.FullName(), "labels", input.Labels)

	req := &githublib.IssueRequest{
		Title:  githublib.Ptr(utils.TruncateText(input.Title, utils.MaxTitleLength)),
		Body:   githublib.Ptr(utils.TruncateText(input.Body, utils.MaxBodyLength)),
		Labels: &input.Labels,
	}
	var issue *githublib.Issue
	err := r.client.retryCreate(ctx, func() error {
		if err := r.client.waitContent(ctx); err != nil {
			return err
		}
		var err error
		issue, _, err = r.client.GetInner().Issues.Create(ctx, r.owner, r.name, req)
		return err
	})
	if err != nil {
		logger.Error("Failed to create GitHub issue", "repo", r.FullName(), "error", err)
		return nil, fmt.Errorf("failed to create issue in %s: %w", r.FullName(), err)
	}
	return issueToItem(issue), nil
}

// CreateComment adds a conversation comment to an issue or a pull request
func (r *Repository) CreateComment(ctx context.Context, number int, body string) error {
	truncatedBody := utils.TruncateText(body, utils.MaxCommentLength)
	err := r.client.retryCreate(ctx, func() error {
		if err := r.client.waitContent(ctx); err != nil {
			return err
		}
		_, resp, err := r.client.GetInner().Issues.CreateComment(ctx, r.owner, r.name, number,
			&githublib.IssueComment{Body: &truncatedBody})
		if err != nil && resp != nil {
			err = fmt.Errorf("%w, x-github-request-id: %s", err, resp.Header.Get("x-github-request-id"))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to comment on %s#%d: %w", r.FullName(), number, err)
	}
	return nil
}

// NoDiffError indicates that there's no difference between branches for a PR
type NoDiffError struct {
	Head string
	Base string
}

func (e *NoDiffError) Error() string {
	return fmt.Sprintf("no diff found between branches: %s and %s", e.Head, e.Base)
}

// CreatePullRequest opens a pull request. Head is a branch name or owner:branch.
func (r *Repository) CreatePullRequest(ctx context.Context, input *model.NewPullRequest) (*model.Item, error) {
	logger.Debug("Creating GitHub pull request",
		"repo", r.FullName(),
		"head", input.Head,
		"base", input.Base,
		"title", utils.TruncateText(input.Title, 50))

	newPR := &githublib.NewPullRequest{
		Title:               githublib.Ptr(utils.TruncateText(input.Title, utils.MaxTitleLength)),
		Body:                githublib.Ptr(utils.TruncateText(input.Body, utils.MaxBodyLength)),
		Head:                githublib.Ptr(input.Head),
		Base:                githublib.Ptr(input.Base),
		MaintainerCanModify: githublib.Ptr(true),
	}

	var pr *githublib.PullRequest
	err := r.client.retryCreate(ctx, func() error {
		if err := r.client.waitContent(ctx); err != nil {
			return err
		}
		var err error
		pr, _, err = r.client.GetInner().PullRequests.Create(ctx, r.owner, r.name, newPR)
		return err
	})
	if err != nil {
		logger.Debug("Failed to create GitHub PR", "repo", r.FullName(), "head", input.Head, "base", input.Base, "error", err)
		var errResp *githublib.ErrorResponse
		if errors.As(err, &errResp) {
			for _, e := range errResp.Errors {
				if strings.HasPrefix(e.Message, "No commits between") || e.Message == "At least one commit is required" ||
					strings.HasPrefix(e.Message, "No changes between") || e.Message == "There isn't anything to compare" {
					return nil, &NoDiffError{Head: input.Head, Base: input.Base}
				}
			}
		}
		return nil, fmt.Errorf("failed to create pull request in %s (head=%s, base=%s): %w", r.FullName(), input.Head, input.Base, err)
	}
	return pullToItem(pr), nil
}

func (r *Repository) CloseIssue(ctx context.Context, number int) error {
	logger.Debug("Closing issue", "repo", r.FullName(), "number", number)
	err := r.client.retry(ctx, func() error {
		_, _, err := r.client.GetInner().Issues.Edit(ctx, r.owner, r.name, number,
			&githublib.IssueRequest{State: githublib.Ptr("closed")})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to close issue %s#%d: %w", r.FullName(), number, err)
	}
	return nil
}

// ClosePullRequest closes a pull request
func (r *Repository) ClosePullRequest(ctx context.Context, number int) error {
	logger.Debug("Closing pull request", "repo", r.FullName(), "number", number)
	err := r.client.retry(ctx, func() error {
		_, resp, err := r.client.GetInner().PullRequests.Edit(ctx, r.owner, r.name, number,
			&githublib.PullRequest{State: githublib.Ptr("closed")})
		if err != nil && resp != nil {
			err = fmt.Errorf("%w, x-github-request-id: %s", err, resp.Header.Get("x-github-request-id"))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to close pull request %s#%d: %w", r.FullName(), number, err)
	}
	return nil
}

// ListOrphanedBranches returns branches named "{prefix}-..." that no pull request uses as head
func (r *Repository) ListOrphanedBranches(ctx context.Context, prefix string) ([]string, error) {
	var q struct {
		Repository struct {
			Refs struct {
				Nodes []struct {
					Name                   string
					AssociatedPullRequests struct {
						TotalCount int
					} `graphql:"associatedPullRequests(first: 1)"`
				}
				PageInfo struct {
					EndCursor   githubv4.String
					HasNextPage bool
				}
			} `graphql:"refs(refPrefix: \"refs/heads/\", query: $query, first: 100, after: $cursor)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	variables := map[string]interface{}{
		"owner":  githubv4.String(r.owner),
		"name":   githubv4.String(r.name),
		"query":  githubv4.String(prefix),
		"cursor": (*githubv4.String)(nil),
	}

	var orphaned []string
	for {
		err := r.client.retry(ctx, func() error {
			return r.client.GetV4().Query(ctx, &q, variables)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list branches of %s: %w", r.FullName(), err)
		}
		for _, node := range q.Repository.Refs.Nodes {
			// the ref query is a fuzzy match
			if !strings.HasPrefix(node.Name, prefix+"-") {
				continue
			}
			if node.AssociatedPullRequests.TotalCount == 0 {
				orphaned = append(orphaned, node.Name)
			}
		}
		if !q.Repository.Refs.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Repository.Refs.PageInfo.EndCursor)
	}
	return orphaned, nil
}

// DeleteBranch deletes a branch from the repository
func (r *Repository) DeleteBranch(ctx context.Context, branch string) error {
	logger.Debug("Deleting branch", "repo", r.FullName(), "branch", branch)
	err := r.client.retry(ctx, func() error {
		_, err := r.client.GetInner().Git.DeleteRef(ctx, r.owner, r.name, "heads/"+branch)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", branch, err)
	}
	return nil
}

func issueToItem(issue *githublib.Issue) *model.Item {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	return &model.Item{
		Number:  issue.GetNumber(),
		Title:   issue.GetTitle(),
		Body:    issue.GetBody(),
		Author:  issue.GetUser().GetLogin(),
		Labels:  labels,
		State:   model.ItemState(issue.GetState()),
		HTMLURL: issue.GetHTMLURL(),
	}
}

func pullToItem(pr *githublib.PullRequest) *model.Item {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}
	state := model.ItemState(pr.GetState())
	if pr.GetMerged() || pr.MergedAt != nil {
		state = model.StateMerged
	}
	return &model.Item{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		Author:  pr.GetUser().GetLogin(),
		Labels:  labels,
		State:   state,
		HTMLURL: pr.GetHTMLURL(),
		HeadRef: pr.GetHead().GetRef(),
	}
}
