package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/state"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeTracker is an in-memory repository
type fakeTracker struct {
	owner string
	name  string

	issues   []*model.Item
	prs      []*model.Item
	comments map[int][]*model.Comment
	reviews  map[int][]*model.Review
	orphans  []string

	// failures keyed by "Method" or "Method:number"
	failures map[string]error
	// createPRHook, if set, decides the result of each CreatePullRequest call
	createPRHook func(input *model.NewPullRequest) error

	nextNumber int
	posted     map[int][]string
	prInputs   []*model.NewPullRequest
	deleted    []string
	calls      map[string]int
}

func newFakeTracker(fullName string) *fakeTracker {
	parts := strings.SplitN(fullName, "/", 2)
	return &fakeTracker{
		owner:      parts[0],
		name:       parts[1],
		comments:   map[int][]*model.Comment{},
		reviews:    map[int][]*model.Review{},
		failures:   map[string]error{},
		nextNumber: 100,
		posted:     map[int][]string{},
		calls:      map[string]int{},
	}
}

func (f *fakeTracker) failure(method string, number int) error {
	f.calls[method]++
	if err, ok := f.failures[fmt.Sprintf("%s:%d", method, number)]; ok {
		return err
	}
	return f.failures[method]
}

func (f *fakeTracker) addIssue(item *model.Item) *fakeTracker {
	f.issues = append(f.issues, item)
	return f
}

func (f *fakeTracker) addPR(item *model.Item) *fakeTracker {
	f.prs = append(f.prs, item)
	return f
}

func find(items []*model.Item, number int) *model.Item {
	for _, item := range items {
		if item.Number == number {
			return item
		}
	}
	return nil
}

func filter(items []*model.Item, itemState string) []*model.Item {
	var ret []*model.Item
	for _, item := range items {
		if itemState == "all" || (itemState == "open" && item.State == model.StateOpen) {
			ret = append(ret, item)
		}
	}
	return ret
}

func (f *fakeTracker) FullName() string { return f.owner + "/" + f.name }
func (f *fakeTracker) Owner() string    { return f.owner }

func (f *fakeTracker) CheckExists(ctx context.Context) error {
	return f.failure("CheckExists", 0)
}

func (f *fakeTracker) GetIssue(ctx context.Context, number int) (*model.Item, error) {
	if err := f.failure("GetIssue", number); err != nil {
		return nil, err
	}
	if item := find(f.issues, number); item != nil {
		return item, nil
	}
	return nil, fmt.Errorf("%w: issue #%d", model.ErrNotFound, number)
}

func (f *fakeTracker) GetPullRequest(ctx context.Context, number int) (*model.Item, error) {
	if err := f.failure("GetPullRequest", number); err != nil {
		return nil, err
	}
	if item := find(f.prs, number); item != nil {
		return item, nil
	}
	return nil, fmt.Errorf("%w: pull request #%d", model.ErrNotFound, number)
}

func (f *fakeTracker) ListIssues(ctx context.Context, itemState string) ([]*model.Item, error) {
	if err := f.failure("ListIssues", 0); err != nil {
		return nil, err
	}
	return filter(f.issues, itemState), nil
}

func (f *fakeTracker) ListPullRequests(ctx context.Context, itemState string) ([]*model.Item, error) {
	if err := f.failure("ListPullRequests", 0); err != nil {
		return nil, err
	}
	return filter(f.prs, itemState), nil
}

func (f *fakeTracker) ListIssueComments(ctx context.Context, number int) ([]*model.Comment, error) {
	if err := f.failure("ListIssueComments", number); err != nil {
		return nil, err
	}
	return f.comments[number], nil
}

func (f *fakeTracker) ListReviews(ctx context.Context, number int) ([]*model.Review, error) {
	if err := f.failure("ListReviews", number); err != nil {
		return nil, err
	}
	return f.reviews[number], nil
}

func (f *fakeTracker) CreateIssue(ctx context.Context, input *model.NewIssue) (*model.Item, error) {
	if err := f.failure("CreateIssue", 0); err != nil {
		return nil, err
	}
	f.nextNumber++
	item := &model.Item{Number: f.nextNumber, Title: input.Title, Body: input.Body, Labels: input.Labels, State: model.StateOpen}
	f.issues = append(f.issues, item)
	return item, nil
}

func (f *fakeTracker) CreateComment(ctx context.Context, number int, body string) error {
	if err := f.failure("CreateComment", number); err != nil {
		return err
	}
	f.posted[number] = append(f.posted[number], body)
	return nil
}

func (f *fakeTracker) CreatePullRequest(ctx context.Context, input *model.NewPullRequest) (*model.Item, error) {
	copied := *input
	f.prInputs = append(f.prInputs, &copied)
	if err := f.failure("CreatePullRequest", 0); err != nil {
		return nil, err
	}
	if f.createPRHook != nil {
		if err := f.createPRHook(input); err != nil {
			return nil, err
		}
	}
	f.nextNumber++
	item := &model.Item{Number: f.nextNumber, Title: input.Title, Body: input.Body, State: model.StateOpen, HeadRef: input.Head}
	f.prs = append(f.prs, item)
	return item, nil
}

func (f *fakeTracker) CloseIssue(ctx context.Context, number int) error {
	if err := f.failure("CloseIssue", number); err != nil {
		return err
	}
	if item := find(f.issues, number); item != nil {
		item.State = model.StateClosed
	}
	return nil
}

func (f *fakeTracker) ClosePullRequest(ctx context.Context, number int) error {
	if err := f.failure("ClosePullRequest", number); err != nil {
		return err
	}
	if item := find(f.prs, number); item != nil {
		item.State = model.StateClosed
	}
	return nil
}

func (f *fakeTracker) ListOrphanedBranches(ctx context.Context, prefix string) ([]string, error) {
	if err := f.failure("ListOrphanedBranches", 0); err != nil {
		return nil, err
	}
	return f.orphans, nil
}

func (f *fakeTracker) DeleteBranch(ctx context.Context, branch string) error {
	if err := f.failure("DeleteBranch", 0); err != nil {
		return err
	}
	f.deleted = append(f.deleted, branch)
	return nil
}

type mockGit struct {
	mock.Mock
}

func (m *mockGit) Preflight(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockGit) FetchPullRequest(ctx context.Context, number int, branch string) error {
	return m.Called(ctx, number, branch).Error(0)
}

func (m *mockGit) PushBranch(ctx context.Context, branch string) error {
	return m.Called(ctx, branch).Error(0)
}

type mockPrompter struct {
	mock.Mock
}

func (m *mockPrompter) ConfirmPullRequest(pr *model.Item) (bool, error) {
	args := m.Called(pr)
	return args.Bool(0), args.Error(1)
}

func (m *mockPrompter) ConfirmOrphanRecovery(branch string, number int) (bool, error) {
	args := m.Called(branch, number)
	return args.Bool(0), args.Error(1)
}

func (m *mockPrompter) ConfirmBranchDeletion(branch string) (bool, error) {
	args := m.Called(branch)
	return args.Bool(0), args.Error(1)
}

// memStore keeps every saved document
type memStore struct {
	t         *testing.T
	snapshots [][]byte
	err       error
}

func (m *memStore) Save(st *state.MigrationState) error {
	if m.err != nil {
		return m.err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	require.NoError(m.t, err)
	m.snapshots = append(m.snapshots, data)
	return nil
}

func (m *memStore) last() []byte {
	if len(m.snapshots) == 0 {
		return nil
	}
	return m.snapshots[len(m.snapshots)-1]
}

type fixture struct {
	source   *fakeTracker
	dest     *fakeTracker
	git      *mockGit
	prompter *mockPrompter
	store    *memStore
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	return &fixture{
		source:   newFakeTracker("upstream/project"),
		dest:     newFakeTracker("fork/project"),
		git:      &mockGit{},
		prompter: &mockPrompter{},
		store:    &memStore{t: t},
	}
}

func (f *fixture) coordinator(opts Options) *Coordinator {
	if opts.Prefix == "" {
		opts.Prefix = "imported-pr"
	}
	if opts.Base == "" {
		opts.Base = "main"
	}
	if opts.IssueLabel == "" {
		opts.IssueLabel = "imported-from-upstream"
	}
	c := NewCoordinator(opts, f.source, f.dest, f.git, f.store, f.prompter)
	c.now = func() time.Time { return fixedNow }
	return c
}
