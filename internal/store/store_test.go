package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dnguyen/tasktick/internal/model"
	"github.com/dnguyen/tasktick/internal/recurrence"
	"github.com/dnguyen/tasktick/internal/remote"
	"github.com/dnguyen/tasktick/internal/storage"
	syncengine "github.com/dnguyen/tasktick/internal/sync"
	"github.com/dnguyen/tasktick/tests/testutil"
)

// testClock is a manually advanced time source.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T) (*Store, *testClock, *storage.Adapter) {
	t.Helper()
	sa := testutil.NewTestAdapter(t)
	clock := newTestClock()
	engine := syncengine.NewEngine(remote.Unconfigured{}, time.Second, zap.NewNop())
	s := New(sa, engine, Config{
		Clock:        clock.Now,
		SaveDebounce: time.Millisecond,
		UndoLimit:    3,
		UndoTTL:      30 * time.Second,
	}, zap.NewNop())
	t.Cleanup(s.Close)
	return s, clock, sa
}

func TestAddValidatesTitle(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.Add("   ", model.TaskPatch{})
	require.Error(t, err)

	task, err := s.Add("  buy milk  ", model.TaskPatch{})
	require.NoError(t, err)
	assert.Equal(t, "buy milk", task.Title, "titles are trimmed")
	assert.True(t, task.IsNew)
	assert.True(t, task.Dirty)
	assert.Equal(t, model.DefaultListID, task.ListID)
}

func TestAddRejectsInvalidPriority(t *testing.T) {
	s, _, _ := newTestStore(t)

	bogus := model.Priority("urgent")
	_, err := s.Add("task", model.TaskPatch{Priority: &bogus})
	require.Error(t, err)
}

func TestAddAssignsSequentialPositions(t *testing.T) {
	s, _, _ := newTestStore(t)

	a, _ := s.Add("a", model.TaskPatch{})
	b, _ := s.Add("b", model.TaskPatch{})
	c, _ := s.Add("c", model.TaskPatch{})

	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 1, b.Position)
	assert.Equal(t, 2, c.Position)
}

func TestUpdateNoOpDoesNotBumpRevision(t *testing.T) {
	s, _, _ := newTestStore(t)

	task, _ := s.Add("stable", model.TaskPatch{})
	before := s.Revision()

	title := "stable"
	require.NoError(t, s.Update(task.ID, model.TaskPatch{Title: &title}))
	assert.Equal(t, before, s.Revision())

	title = "changed"
	require.NoError(t, s.Update(task.ID, model.TaskPatch{Title: &title}))
	assert.Greater(t, s.Revision(), before)
}

func TestDeleteTombstonesAndUndoRestores(t *testing.T) {
	s, _, _ := newTestStore(t)

	task, _ := s.Add("doomed", model.TaskPatch{})
	require.NoError(t, s.Delete(task.ID))

	assert.Nil(t, s.Get(task.ID), "tombstoned tasks are hidden")
	assert.Empty(t, s.Tasks())

	require.NoError(t, s.Undo())
	restored := s.Get(task.ID)
	require.NotNil(t, restored)
	assert.Equal(t, "doomed", restored.Title)
	assert.False(t, restored.Deleted)
	assert.True(t, restored.Dirty, "restored task must re-sync")
}

func TestUndoExpiry(t *testing.T) {
	s, clock, _ := newTestStore(t)

	task, _ := s.Add("short-lived", model.TaskPatch{})
	require.NoError(t, s.Delete(task.ID))
	require.True(t, s.CanUndo())

	clock.Advance(31 * time.Second)
	assert.False(t, s.CanUndo())
	assert.Error(t, s.Undo())
}

func TestUndoRingEvictsOldest(t *testing.T) {
	s, _, _ := newTestStore(t)

	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		task, _ := s.Add(name, model.TaskPatch{})
		ids = append(ids, task.ID)
	}
	for _, id := range ids {
		require.NoError(t, s.Delete(id))
	}

	// Limit is 3: undoing four times exhausts the buffer after three.
	require.NoError(t, s.Undo())
	require.NoError(t, s.Undo())
	require.NoError(t, s.Undo())
	assert.Error(t, s.Undo())

	assert.Nil(t, s.Get(ids[0]), "oldest delete was evicted and stays deleted")
}

func TestToggleCompleteSpawnsSuccessorAfterOrigin(t *testing.T) {
	s, clock, _ := newTestStore(t)

	due := clock.Now().Add(5 * time.Hour)
	duePtr := &due
	rule := &recurrence.Rule{Type: recurrence.TypeDaily}

	s.Add("before", model.TaskPatch{})
	origin, err := s.Add("recurring", model.TaskPatch{DueDate: &duePtr, Rule: &rule})
	require.NoError(t, err)
	s.Add("after", model.TaskPatch{})

	require.NoError(t, s.ToggleComplete(origin.ID))

	tasks := s.Tasks()
	require.Len(t, tasks, 4)
	assert.Equal(t, "before", tasks[0].Title)
	assert.Equal(t, "recurring", tasks[1].Title)
	assert.True(t, tasks[1].Completed)

	successor := tasks[2]
	assert.Equal(t, "recurring", successor.Title)
	assert.False(t, successor.Completed)
	assert.NotEqual(t, origin.ID, successor.ID)
	require.NotNil(t, successor.DueDate)
	assert.True(t, successor.DueDate.Equal(due.AddDate(0, 0, 1)))

	assert.Equal(t, "after", tasks[3].Title)
	for i, task := range tasks {
		assert.Equal(t, i, task.Position, "positions renumber after spawn")
	}
}

func TestUndoCompleteRemovesSpawnedSuccessor(t *testing.T) {
	s, clock, _ := newTestStore(t)

	due := clock.Now()
	duePtr := &due
	rule := &recurrence.Rule{Type: recurrence.TypeDaily}
	origin, _ := s.Add("recurring", model.TaskPatch{DueDate: &duePtr, Rule: &rule})

	require.NoError(t, s.ToggleComplete(origin.ID))
	require.Len(t, s.Tasks(), 2)

	require.NoError(t, s.Undo())
	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, origin.ID, tasks[0].ID)
	assert.False(t, tasks[0].Completed)
}

func TestTimerOperations(t *testing.T) {
	s, clock, _ := newTestStore(t)

	task, _ := s.Add("timed", model.TaskPatch{})

	require.NoError(t, s.StartTimer(task.ID))
	clock.Advance(3 * time.Second)
	require.NoError(t, s.PauseTimer(task.ID))

	got := s.Get(task.ID)
	assert.Equal(t, int64(3000), got.AccumulatedMs)
	assert.False(t, got.IsRunning())

	require.NoError(t, s.ResetTimer(task.ID))
	assert.Equal(t, int64(0), s.Get(task.ID).AccumulatedMs)
}

func TestMoveRenumbersWithoutDuplicates(t *testing.T) {
	s, _, _ := newTestStore(t)

	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		task, _ := s.Add(name, model.TaskPatch{})
		ids = append(ids, task.ID)
	}

	require.NoError(t, s.Move(ids[3], 0))

	tasks := s.Tasks()
	titles := []string{tasks[0].Title, tasks[1].Title, tasks[2].Title, tasks[3].Title}
	assert.Equal(t, []string{"d", "a", "b", "c"}, titles)

	seen := make(map[int]bool)
	for _, task := range tasks {
		assert.False(t, seen[task.Position], "duplicate position %d", task.Position)
		seen[task.Position] = true
	}
}

func TestClearCompletedIsUndoable(t *testing.T) {
	s, _, _ := newTestStore(t)

	keep, _ := s.Add("active", model.TaskPatch{})
	d1, _ := s.Add("done1", model.TaskPatch{})
	d2, _ := s.Add("done2", model.TaskPatch{})
	require.NoError(t, s.ToggleComplete(d1.ID))
	require.NoError(t, s.ToggleComplete(d2.ID))

	n := s.ClearCompleted()
	assert.Equal(t, 2, n)
	require.Len(t, s.Tasks(), 1)
	assert.Equal(t, keep.ID, s.Tasks()[0].ID)

	require.NoError(t, s.Undo())
	assert.Len(t, s.Tasks(), 3)
}

func TestDeleteTagCascades(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.AddTag("work", "#ff0000")
	require.NoError(t, err)
	_, err = s.AddTag("Work", "")
	assert.Error(t, err, "tag names are unique case-insensitively")

	tags := []string{"work", "home"}
	task, _ := s.Add("tagged", model.TaskPatch{Tags: &tags})

	require.NoError(t, s.DeleteTag("work"))
	assert.Equal(t, []string{"home"}, s.Get(task.ID).Tags)
	assert.Empty(t, s.Tags())

	require.NoError(t, s.Undo())
	assert.Contains(t, s.Get(task.ID).Tags, "work")
	assert.Len(t, s.Tags(), 1)
}

func TestDeleteListReassignsToDefault(t *testing.T) {
	s, _, _ := newTestStore(t)

	list, err := s.AddList("errands", "", "")
	require.NoError(t, err)

	listID := list.ID
	task, _ := s.Add("in list", model.TaskPatch{ListID: &listID})
	require.Equal(t, listID, s.Get(task.ID).ListID)

	assert.Error(t, s.DeleteList(model.DefaultListID), "default list is protected")

	require.NoError(t, s.DeleteList(listID))
	assert.Equal(t, model.DefaultListID, s.Get(task.ID).ListID)
	assert.True(t, s.Get(task.ID).Dirty)

	require.NoError(t, s.Undo())
	assert.Equal(t, listID, s.Get(task.ID).ListID)
}

func TestFlushPersistsAcrossReload(t *testing.T) {
	sa := testutil.NewTestAdapter(t)
	clock := newTestClock()
	engine := syncengine.NewEngine(remote.Unconfigured{}, time.Second, zap.NewNop())
	cfg := Config{Clock: clock.Now, SaveDebounce: time.Hour} // debounce never fires

	s := New(sa, engine, cfg, zap.NewNop())
	task, _ := s.Add("persist me", model.TaskPatch{})
	s.StartTimer(task.ID)
	clock.Advance(2 * time.Second)
	s.PauseTimer(task.ID)
	s.Flush()

	reloaded := New(sa, engine, cfg, zap.NewNop())
	tasks := reloaded.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "persist me", tasks[0].Title)
	assert.Equal(t, int64(2000), tasks[0].AccumulatedMs)
	assert.True(t, tasks[0].Dirty, "sync flags survive a reload")
	assert.True(t, tasks[0].IsNew)
}

// stubBackend lets the store-level sync test run against a canned
// remote. Created tasks show up in subsequent fetches, like a real
// backend would.
type stubBackend struct {
	remote.Unconfigured
	fetch   []model.Task
	created []model.Task
}

func (s *stubBackend) Configured() bool { return true }

func (s *stubBackend) FetchAll(context.Context, string) ([]model.Task, error) {
	return append(append([]model.Task(nil), s.created...), s.fetch...), nil
}

func (s *stubBackend) Create(ctx context.Context, owner string, t model.Task) (*model.Task, error) {
	t.Dirty = false
	t.IsNew = false
	s.created = append(s.created, t)
	return &t, nil
}

func TestStoreSyncAdoptsMergedCollection(t *testing.T) {
	sa := testutil.NewTestAdapter(t)
	clock := newTestClock()

	fromServer := model.Task{
		ID:        "srv-1",
		Title:     "From Server",
		Priority:  model.PriorityNone,
		CreatedAt: clock.Now(),
		UpdatedAt: clock.Now(),
		Position:  99,
	}

	s := New(sa, nil, Config{Clock: clock.Now}, zap.NewNop())
	local, _ := s.Add("local task", model.TaskPatch{})

	backend := &stubBackend{fetch: []model.Task{fromServer}}
	s.engine = syncengine.NewEngine(backend, time.Second, zap.NewNop())

	require.NoError(t, s.Sync(context.Background()))

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, local.ID, tasks[0].ID)
	assert.False(t, tasks[0].IsNew, "push succeeded during the cycle")
	assert.Equal(t, "srv-1", tasks[1].ID)

	_, ok := sa.LastSync()
	assert.True(t, ok, "successful cycle records last-sync time")
}

// gatedBackend stalls phase-2 fetches until released so tests can
// mutate the store while a cycle is in flight.
type gatedBackend struct {
	remote.Unconfigured
	fetch        []model.Task
	fetchStarted chan struct{}
	release      chan struct{}
}

func newGatedBackend(fetch ...model.Task) *gatedBackend {
	return &gatedBackend{
		fetch:        fetch,
		fetchStarted: make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (g *gatedBackend) Configured() bool { return true }

func (g *gatedBackend) FetchAll(ctx context.Context, _ string) ([]model.Task, error) {
	close(g.fetchStarted)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return append([]model.Task(nil), g.fetch...), nil
}

func TestAddDuringSyncSurvivesAdoption(t *testing.T) {
	s, _, _ := newTestStore(t)

	backend := newGatedBackend()
	s.engine = syncengine.NewEngine(backend, time.Second, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background()) }()

	<-backend.fetchStarted
	added, err := s.Add("landed mid-cycle", model.TaskPatch{})
	require.NoError(t, err)
	close(backend.release)
	require.NoError(t, <-done)

	got := s.Get(added.ID)
	require.NotNil(t, got, "a task added while a cycle is in flight must survive adoption")
	assert.True(t, got.IsNew, "never pushed, stays queued for the next cycle")
	assert.True(t, got.Dirty)
}

func TestEditDuringSyncKeepsLocalCopy(t *testing.T) {
	sa := testutil.NewTestAdapter(t)
	clock := newTestClock()
	s := New(sa, nil, Config{Clock: clock.Now}, zap.NewNop())
	t.Cleanup(s.Close)

	task, _ := s.Add("original", model.TaskPatch{})
	s.engine = syncengine.NewEngine(&stubBackend{}, time.Second, zap.NewNop())
	require.NoError(t, s.Sync(context.Background()))
	require.False(t, s.Get(task.ID).Dirty, "first cycle cleans the task")

	serverCopy := *s.Get(task.ID)
	backend := newGatedBackend(serverCopy)
	s.engine = syncengine.NewEngine(backend, time.Second, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background()) }()

	<-backend.fetchStarted
	title := "edited mid-cycle"
	require.NoError(t, s.Update(task.ID, model.TaskPatch{Title: &title}))
	close(backend.release)
	require.NoError(t, <-done)

	got := s.Get(task.ID)
	assert.Equal(t, "edited mid-cycle", got.Title,
		"stale server copy must not clobber a fresh edit")
	assert.True(t, got.Dirty, "the edit stays queued for the next cycle")
}

func TestSkippedCycleDoesNotRecordLastSync(t *testing.T) {
	s, _, sa := newTestStore(t)

	s.Add("pending", model.TaskPatch{})
	require.NoError(t, s.Sync(context.Background()))

	_, ok := sa.LastSync()
	assert.False(t, ok, "an unconfigured backend runs no cycle")
}
