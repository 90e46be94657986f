package migration

import "github.com/krrrr38/github-2-github/pkg/logger"

// OutcomeKind classifies the result of handling one item
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeSkipped means nothing was done, e.g. declined in interactive mode
	OutcomeSkipped
	// OutcomeTransient means a lookup failed; the item was recorded as errored
	OutcomeTransient
	// OutcomeFatal means the migration of the item failed
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

// Outcome is the result of one per-item operation
type Outcome struct {
	Kind        OutcomeKind
	Source      int
	Destination int
	Err         error
}

// Tally counts outcomes by kind
type Tally struct {
	Success   int
	Skipped   int
	Transient int
	Fatal     int
}

func (t *Tally) Add(o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		t.Success++
	case OutcomeSkipped:
		t.Skipped++
	case OutcomeTransient:
		t.Transient++
	case OutcomeFatal:
		t.Fatal++
	}
}

// Report aggregates what a run did
type Report struct {
	DryRun bool

	Adopted   int
	Updated   int
	Closed    int
	Evicted   int
	Reconcile Tally

	OrphansFound     int
	OrphansRecovered int

	NewIssues       int
	NewPRs          int
	DiscoveryErrors int

	Issues Tally
	PRs    Tally
}

func (r *Report) log() {
	logger.Info("Migration completed",
		"dry_run", r.DryRun,
		"adopted", r.Adopted,
		"updated", r.Updated,
		"closed", r.Closed,
		"evicted", r.Evicted,
		"reconcile_errors", r.Reconcile.Transient,
		"orphans_recovered", r.OrphansRecovered,
		"new_issues", r.NewIssues,
		"new_prs", r.NewPRs,
		"issues_imported", r.Issues.Success,
		"issues_failed", r.Issues.Fatal,
		"prs_imported", r.PRs.Success,
		"prs_skipped", r.PRs.Skipped,
		"prs_failed", r.PRs.Fatal)
}
