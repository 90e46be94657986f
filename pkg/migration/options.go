package migration

import (
	"context"
	"fmt"

	"github.com/krrrr38/github-2-github/pkg/config"
	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/state"
)

// Options holds the knobs of one import run
type Options struct {
	// Prefix names pushed branches "{Prefix}-{number}"
	Prefix string
	// Base is the destination branch pull requests target
	Base string
	// IssueLabel marks imported issues
	IssueLabel string

	DryRun       bool
	SyncOnly     bool
	ImportIssues bool
	ImportPRs    bool
	Interactive  bool
	// ReimportMissing evicts mappings whose destination item is gone instead of recording an error
	ReimportMissing bool
}

// OptionsFromConfig maps the import settings onto coordinator options
func OptionsFromConfig(cfg config.ImportConfig) Options {
	return Options{
		Prefix:          cfg.Prefix,
		Base:            cfg.Base,
		IssueLabel:      cfg.IssueLabel,
		DryRun:          cfg.DryRun,
		SyncOnly:        cfg.SyncOnly,
		ImportIssues:    cfg.ImportIssues,
		ImportPRs:       cfg.ImportPRs,
		Interactive:     cfg.Interactive,
		ReimportMissing: cfg.ReimportMissing,
	}
}

func (o Options) kinds() []model.ItemKind {
	var kinds []model.ItemKind
	if o.ImportIssues {
		kinds = append(kinds, model.KindIssue)
	}
	if o.ImportPRs {
		kinds = append(kinds, model.KindPullRequest)
	}
	return kinds
}

func (o Options) branchName(number int) string {
	return fmt.Sprintf("%s-%d", o.Prefix, number)
}

// Tracker is an issue and pull request host bound to one repository
type Tracker interface {
	FullName() string
	Owner() string
	CheckExists(ctx context.Context) error

	GetIssue(ctx context.Context, number int) (*model.Item, error)
	GetPullRequest(ctx context.Context, number int) (*model.Item, error)
	ListIssues(ctx context.Context, state string) ([]*model.Item, error)
	ListPullRequests(ctx context.Context, state string) ([]*model.Item, error)
	ListIssueComments(ctx context.Context, number int) ([]*model.Comment, error)
	ListReviews(ctx context.Context, number int) ([]*model.Review, error)

	CreateIssue(ctx context.Context, input *model.NewIssue) (*model.Item, error)
	CreateComment(ctx context.Context, number int, body string) error
	CreatePullRequest(ctx context.Context, input *model.NewPullRequest) (*model.Item, error)
	CloseIssue(ctx context.Context, number int) error
	ClosePullRequest(ctx context.Context, number int) error

	ListOrphanedBranches(ctx context.Context, prefix string) ([]string, error)
	DeleteBranch(ctx context.Context, branch string) error
}

// GitRunner moves pull request heads from the source remote to the destination remote
type GitRunner interface {
	Preflight(ctx context.Context) error
	FetchPullRequest(ctx context.Context, number int, branch string) error
	PushBranch(ctx context.Context, branch string) error
}

// StateStore persists the migration state after every change
type StateStore interface {
	Save(st *state.MigrationState) error
}

// Prompter asks the operator for confirmation in interactive mode
type Prompter interface {
	ConfirmPullRequest(pr *model.Item) (bool, error)
	ConfirmOrphanRecovery(branch string, number int) (bool, error)
	ConfirmBranchDeletion(branch string) (bool, error)
}
