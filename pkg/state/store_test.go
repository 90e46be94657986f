package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "import_state.json"))
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, st.LastRun)
	assert.NotNil(t, st.ImportedIssues)
	assert.NotNil(t, st.ImportedPRs)
	assert.NotNil(t, st.Errors.Issues)
	assert.NotNil(t, st.Errors.PRs)
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)

	st := New()
	st.RecordImport(model.KindIssue, "42", 7, model.StateOpen)
	st.RecordImport(model.KindPullRequest, "3", 9, model.StateMerged)
	st.RecordError(model.KindPullRequest, "5", errors.New("push rejected"), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(st))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded.LastRun)
	assert.Equal(t, "2025-03-01T12:00:00Z", loaded.LastRun.Format(time.RFC3339))
	assert.Equal(t, ImportRecord{DstNum: 7, State: model.StateOpen}, loaded.ImportedIssues["42"])
	assert.Equal(t, ImportRecord{DstNum: 9, State: model.StateMerged}, loaded.ImportedPRs["3"])
	assert.Equal(t, ErrorRecord{Error: "push rejected", Timestamp: "2025-02-01T00:00:00Z"}, loaded.Errors.PRs["5"])
}

func TestStore_SaveFormat(t *testing.T) {
	s := newTestStore(t)

	st := New()
	st.RecordImport(model.KindIssue, "42", 7, model.StateOpen)
	require.NoError(t, s.Save(st))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	expected := `{
  "last_run": "2025-03-01T12:00:00Z",
  "imported_issues": {
    "42": {
      "dst_num": 7,
      "state": "open"
    }
  },
  "imported_prs": {},
  "errors": {
    "issues": {},
    "prs": {}
  }
}
`
	assert.Equal(t, expected, string(data))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp file left behind")
	}
}

func TestStore_LoadNormalizesMissingSections(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"last_run": null, "imported_issues": {"1": {"dst_num": 2, "state": "closed"}}, "imported_prs": {}}`), 0o644))

	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, st.ImportedIssues["1"].DstNum)
	assert.NotNil(t, st.Errors.Issues)
	assert.NotNil(t, st.Errors.PRs)
	assert.False(t, st.IsErrored(model.KindIssue, "1"))
}

func TestStore_LoadInvalidJSON(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{not json`), 0o644))

	_, err := s.Load()
	assert.Error(t, err)
}

func TestStore_LockIsExclusive(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Lock())
	t.Cleanup(func() { _ = s.Unlock() })

	other := NewStore(s.Path())
	err := other.Lock()
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, s.Unlock())
	require.NoError(t, other.Lock())
	require.NoError(t, other.Unlock())
	// releasing twice is harmless
	require.NoError(t, other.Unlock())
}

func TestStore_LoadZonelessTimestamps(t *testing.T) {
	s := newTestStore(t)
	doc := `{
  "last_run": "2025-03-14T09:26:53.589793",
  "imported_issues": {"1": {"dst_num": 4, "state": "open"}},
  "imported_prs": {},
  "errors": {
    "issues": {},
    "prs": {"8": {"error": "push rejected", "timestamp": "2025-03-14T09:20:01.123456"}}
  }
}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0o644))

	st, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.Local), st.LastRun.Time)
	assert.Equal(t, ErrorRecord{Error: "push rejected", Timestamp: "2025-03-14T09:20:01.123456"}, st.Errors.PRs["8"])
	assert.True(t, st.IsErrored(model.KindPullRequest, "8"))

	require.NoError(t, s.Save(st))
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_run": "2025-03-01T12:00:00Z"`)
}
