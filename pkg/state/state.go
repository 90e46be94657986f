package state

import (
	"sort"
	"strconv"
	"time"

	"github.com/krrrr38/github-2-github/pkg/model"
)

// ImportRecord maps a source item to the destination item created for it
type ImportRecord struct {
	DstNum int             `json:"dst_num"`
	State  model.ItemState `json:"state"`
}

// ErrorRecord is a permanent failure for a source item
type ErrorRecord struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// ErrorLog holds permanent failures per item kind
type ErrorLog struct {
	Issues map[string]ErrorRecord `json:"issues"`
	PRs    map[string]ErrorRecord `json:"prs"`
}

// MigrationState is the persisted progress of the importer.
// Items listed in Errors are skipped until removed by hand.
type MigrationState struct {
	LastRun        *Timestamp              `json:"last_run"`
	ImportedIssues map[string]ImportRecord `json:"imported_issues"`
	ImportedPRs    map[string]ImportRecord `json:"imported_prs"`
	Errors         ErrorLog                `json:"errors"`
}

// New returns an empty state
func New() *MigrationState {
	s := &MigrationState{}
	s.normalize()
	return s
}

func (s *MigrationState) normalize() {
	if s.ImportedIssues == nil {
		s.ImportedIssues = map[string]ImportRecord{}
	}
	if s.ImportedPRs == nil {
		s.ImportedPRs = map[string]ImportRecord{}
	}
	if s.Errors.Issues == nil {
		s.Errors.Issues = map[string]ErrorRecord{}
	}
	if s.Errors.PRs == nil {
		s.Errors.PRs = map[string]ErrorRecord{}
	}
}

// Key converts an item number to its state key
func Key(number int) string {
	return strconv.Itoa(number)
}

// Imports returns the import map for kind
func (s *MigrationState) Imports(kind model.ItemKind) map[string]ImportRecord {
	if kind == model.KindPullRequest {
		return s.ImportedPRs
	}
	return s.ImportedIssues
}

// ErrorsFor returns the error map for kind
func (s *MigrationState) ErrorsFor(kind model.ItemKind) map[string]ErrorRecord {
	if kind == model.KindPullRequest {
		return s.Errors.PRs
	}
	return s.Errors.Issues
}

func (s *MigrationState) Import(kind model.ItemKind, key string) (ImportRecord, bool) {
	rec, ok := s.Imports(kind)[key]
	return rec, ok
}

func (s *MigrationState) IsImported(kind model.ItemKind, key string) bool {
	_, ok := s.Imports(kind)[key]
	return ok
}

func (s *MigrationState) IsErrored(kind model.ItemKind, key string) bool {
	_, ok := s.ErrorsFor(kind)[key]
	return ok
}

// IsKnown reports whether key is either imported or errored
func (s *MigrationState) IsKnown(kind model.ItemKind, key string) bool {
	return s.IsImported(kind, key) || s.IsErrored(kind, key)
}

// RecordImport stores a successful migration
func (s *MigrationState) RecordImport(kind model.ItemKind, key string, dstNum int, itemState model.ItemState) {
	s.Imports(kind)[key] = ImportRecord{DstNum: dstNum, State: itemState}
}

// SetImportState updates the recorded state of an existing import
func (s *MigrationState) SetImportState(kind model.ItemKind, key string, itemState model.ItemState) {
	imports := s.Imports(kind)
	rec, ok := imports[key]
	if !ok {
		return
	}
	rec.State = itemState
	imports[key] = rec
}

// RemoveImport forgets a mapping
func (s *MigrationState) RemoveImport(kind model.ItemKind, key string) {
	delete(s.Imports(kind), key)
}

// RecordError stores a permanent failure
func (s *MigrationState) RecordError(kind model.ItemKind, key string, err error, at time.Time) {
	s.ErrorsFor(kind)[key] = ErrorRecord{
		Error:     err.Error(),
		Timestamp: at.Format(time.RFC3339),
	}
}

// SortedKeys returns the keys of m ordered by item number
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

// Summary counts imports per state and errors per kind
type Summary struct {
	Issues      map[model.ItemState]int
	PRs         map[model.ItemState]int
	IssueErrors int
	PRErrors    int
}

func (s *MigrationState) Summarize() Summary {
	sum := Summary{
		Issues:      map[model.ItemState]int{},
		PRs:         map[model.ItemState]int{},
		IssueErrors: len(s.Errors.Issues),
		PRErrors:    len(s.Errors.PRs),
	}
	for _, rec := range s.ImportedIssues {
		sum.Issues[rec.State]++
	}
	for _, rec := range s.ImportedPRs {
		sum.PRs[rec.State]++
	}
	return sum
}
