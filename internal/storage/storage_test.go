package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dnguyen/tasktick/internal/model"
	"github.com/dnguyen/tasktick/internal/recurrence"
)

func newAdapter(t *testing.T, path string) *Adapter {
	t.Helper()
	a, err := New(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestLoadTasksEmptyOnFreshDatabase(t *testing.T) {
	a := newAdapter(t, ":memory:")
	assert.Empty(t, a.LoadTasks())
}

func TestTaskRoundTripIsLossless(t *testing.T) {
	a := newAdapter(t, ":memory:")

	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)
	start := now.Add(-time.Minute)
	done := now.Add(-time.Hour)
	end := now.AddDate(0, 2, 0)

	original := model.Task{
		ID:       "task-1",
		Title:    "everything set",
		Notes:    "all fields populated",
		Priority: model.PriorityHigh,
		DueDate:  &due,
		ListID:   "work",
		Tags:     []string{"a", "b"},
		Subtasks: []model.Subtask{
			{ID: "st-1", Title: "half", Done: true, Position: 0},
			{ID: "st-2", Title: "rest", Position: 1},
		},
		Rule: &recurrence.Rule{
			Type:     recurrence.TypeWeekly,
			Days:     []int{1, 3},
			Interval: 2,
			EndDate:  &end,
		},
		AccumulatedMs: 123456,
		LastStart:     &start,
		EstimatedMs:   3600000,
		Completed:     true,
		CompletedAt:   &done,
		CreatedAt:     now.Add(-72 * time.Hour),
		UpdatedAt:     now,
		Position:      7,
		Dirty:         true,
		IsNew:         true,
		SyncError:     "last push failed",
	}

	a.SaveTasks([]model.Task{original})
	loaded := a.LoadTasks()

	require.Len(t, loaded, 1)
	assert.Equal(t, original, loaded[0])
}

func TestSaveOverwrites(t *testing.T) {
	a := newAdapter(t, ":memory:")

	a.SaveTasks([]model.Task{{ID: "a", Title: "first"}, {ID: "b", Title: "second"}})
	a.SaveTasks([]model.Task{{ID: "a", Title: "only"}})

	loaded := a.LoadTasks()
	require.Len(t, loaded, 1)
	assert.Equal(t, "only", loaded[0].Title)
}

func TestCorruptBlobFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	a := newAdapter(t, path)
	a.SaveTasks([]model.Task{{ID: "a", Title: "fine"}})
	f := model.DefaultFilterState()
	f.Status = model.StatusCompleted
	a.SaveFilters(f)
	require.NoError(t, a.Close())

	// Corrupt both blobs behind the adapter's back.
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE kv SET value = '{"not json' WHERE key IN ('tasks', 'filters')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened := newAdapter(t, path)
	assert.Empty(t, reopened.LoadTasks(), "corrupt tasks load as empty, not an error")
	assert.Equal(t, model.DefaultFilterState().Status, reopened.LoadFilters().Status)
}

func TestPartiallyDecodableBlobDoesNotLeakFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	a := newAdapter(t, path)
	a.SaveFilters(model.DefaultFilterState())
	require.NoError(t, a.Close())

	// Valid JSON prefix, then a type mismatch: decoding sets status
	// before failing on sort_by. None of it may reach the caller.
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE kv SET value = '{"status": "completed", "sort_by": 123}' WHERE key = 'filters'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened := newAdapter(t, path)
	assert.Equal(t, model.DefaultFilterState(), reopened.LoadFilters(),
		"a blob that fails mid-decode must leave the defaults intact")
}

func TestFiltersMergeOverDefaults(t *testing.T) {
	a := newAdapter(t, ":memory:")

	f := a.LoadFilters()
	assert.Equal(t, model.StatusAll, f.Status)
	assert.Equal(t, model.SortManual, f.SortBy)

	f.Status = model.StatusActive
	f.SortBy = model.SortPriority
	a.SaveFilters(f)

	loaded := a.LoadFilters()
	assert.Equal(t, model.StatusActive, loaded.Status)
	assert.Equal(t, model.SortPriority, loaded.SortBy)
}

func TestPreferencesRoundTrip(t *testing.T) {
	a := newAdapter(t, ":memory:")

	assert.Equal(t, model.DefaultPreferences(), a.LoadPreferences())

	p := a.LoadPreferences()
	p.Theme = "dark"
	p.DurationPresets = []int{10, 20}
	a.SavePreferences(p)

	loaded := a.LoadPreferences()
	assert.Equal(t, "dark", loaded.Theme)
	assert.Equal(t, []int{10, 20}, loaded.DurationPresets)
}

func TestListsFallBackToBuiltins(t *testing.T) {
	a := newAdapter(t, ":memory:")
	now := time.Now()

	lists := a.LoadLists(now)
	require.Len(t, lists, 1)
	assert.Equal(t, model.DefaultListID, lists[0].ID)

	lists = append(lists, model.TaskList{ID: "l2", Name: "Errands"})
	a.SaveLists(lists)
	assert.Len(t, a.LoadLists(now), 2)
}

func TestTagsRoundTrip(t *testing.T) {
	a := newAdapter(t, ":memory:")

	assert.Empty(t, a.LoadTags())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a.SaveTags([]model.Tag{{Name: "work", Color: "#f00", CreatedAt: now}})

	tags := a.LoadTags()
	require.Len(t, tags, 1)
	assert.Equal(t, "work", tags[0].Name)
}

func TestLastSync(t *testing.T) {
	a := newAdapter(t, ":memory:")

	_, ok := a.LastSync()
	assert.False(t, ok)

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	a.SetLastSync(ts)

	got, ok := a.LastSync()
	require.True(t, ok)
	assert.True(t, got.Equal(ts))
}
