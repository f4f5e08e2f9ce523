// Package store holds the authoritative in-memory task collection. It
// is the single mutation surface: every add, edit, delete, timer flip,
// and reorder goes through it, and only it constructs or destroys task
// entities. The store owns dirty-tracking, debounced local persistence,
// the undo buffer, and orchestration of sync cycles.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	gosync "sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dnguyen/tasktick/internal/model"
	"github.com/dnguyen/tasktick/internal/storage"
	syncengine "github.com/dnguyen/tasktick/internal/sync"
)

// maxTitleLen bounds task titles, in runes.
const maxTitleLen = 500

// Config tunes store behavior. Zero values select defaults.
type Config struct {
	// OwnerID identifies this user's collection on the remote backend.
	OwnerID string

	// SaveDebounce is the window in which rapid mutations coalesce
	// into one local write.
	SaveDebounce time.Duration

	// UndoLimit caps the undo ring buffer.
	UndoLimit int

	// UndoTTL expires undo entries after this long.
	UndoTTL time.Duration

	// Clock overrides the time source, for tests.
	Clock func() time.Time
}

func (c *Config) applyDefaults() {
	if c.SaveDebounce <= 0 {
		c.SaveDebounce = 500 * time.Millisecond
	}
	if c.UndoLimit <= 0 {
		c.UndoLimit = 20
	}
	if c.UndoTTL <= 0 {
		c.UndoTTL = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Store is the task collection store.
type Store struct {
	mu gosync.Mutex

	tasks   []*model.Task
	tags    []model.Tag
	lists   []model.TaskList
	filters model.FilterState
	prefs   model.UserPreferences

	storage *storage.Adapter
	engine  *syncengine.Engine
	log     *zap.Logger
	cfg     Config

	revision  int64
	undo      []undoEntry
	saveTimer *time.Timer
}

// New constructs a store and loads all persisted state from the local
// adapter. Call Close when done to flush pending writes.
func New(sa *storage.Adapter, engine *syncengine.Engine, cfg Config, log *zap.Logger) *Store {
	cfg.applyDefaults()

	s := &Store{
		storage: sa,
		engine:  engine,
		log:     log,
		cfg:     cfg,
	}

	now := cfg.Clock()
	for _, t := range sa.LoadTasks() {
		t := t
		s.tasks = append(s.tasks, &t)
	}
	s.tags = sa.LoadTags()
	s.lists = sa.LoadLists(now)
	s.filters = sa.LoadFilters()
	s.prefs = sa.LoadPreferences()

	return s
}

// Revision returns a counter that advances on every mutation. Callers
// that render the collection can poll it to detect change cheaply.
func (s *Store) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Tasks returns deep copies of all live (non-tombstoned) tasks, in
// position order as stored.
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveTasksLocked()
}

// Get returns a deep copy of one task, or nil when absent or tombstoned.
func (s *Store) Get(id string) *model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(id)
	if t == nil || t.Deleted {
		return nil
	}
	return t.Clone()
}

// Add validates and inserts a new task at the end of the collection.
// The patch lets the caller set initial fields (priority, due date,
// list, tags) in one shot.
func (s *Store) Add(title string, patch model.TaskPatch) (*model.Task, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		return nil, fmt.Errorf("title is set from the first argument")
	}
	if patch.Priority != nil && !model.ValidPriority(*patch.Priority) {
		return nil, fmt.Errorf("invalid priority %q", *patch.Priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Clock()
	t := model.NewTask(title, now)
	t.ListID = model.DefaultListID
	t.Position = s.nextPositionLocked()
	if t.EstimatedMs == 0 && s.prefs.DefaultEstimateMinutes > 0 {
		t.EstimatedMs = int64(s.prefs.DefaultEstimateMinutes) * 60_000
	}
	t.Apply(patch, now)

	s.tasks = append(s.tasks, t)
	s.mutatedLocked()
	return t.Clone(), nil
}

// Update applies a validated partial update. No-op patches do not dirty
// the task or advance its modification time.
func (s *Store) Update(id string, patch model.TaskPatch) error {
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return err
		}
		patch.Title = &title
	}
	if patch.Priority != nil && !model.ValidPriority(*patch.Priority) {
		return fmt.Errorf("invalid priority %q", *patch.Priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil || t.Deleted {
		return fmt.Errorf("task %s not found", id)
	}

	if t.Apply(patch, s.cfg.Clock()) {
		s.mutatedLocked()
	}
	return nil
}

// Delete tombstones a task for eventual remote deletion and pushes an
// undo entry restoring it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil || t.Deleted {
		return fmt.Errorf("task %s not found", id)
	}

	snapshot := t.Clone()
	now := s.cfg.Clock()
	t.Deleted = true
	t.Dirty = true
	t.UpdatedAt = now

	s.pushUndoLocked(undoDeleteTask, now, func() {
		if cur := s.findLocked(id); cur != nil {
			*cur = *snapshot
			cur.Dirty = true
		}
	})
	s.mutatedLocked()
	return nil
}

// ToggleComplete flips a task's completion state. Completing a running
// task pauses its timer first; completing a recurring task spawns its
// successor immediately after it in the ordering.
func (s *Store) ToggleComplete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil || t.Deleted {
		return fmt.Errorf("task %s not found", id)
	}

	snapshot := t.Clone()
	now := s.cfg.Clock()
	seed := t.ToggleComplete(now)

	var spawnedID string
	if seed != nil {
		successor := s.spawnSuccessorLocked(seed, t, now)
		spawnedID = successor.ID
	}

	if t.Completed {
		s.pushUndoLocked(undoCompleteTask, now, func() {
			if cur := s.findLocked(id); cur != nil {
				*cur = *snapshot
				cur.Dirty = true
			}
			if spawnedID != "" {
				s.removeLocked(spawnedID)
			}
		})
	}
	s.mutatedLocked()
	return nil
}

// spawnSuccessorLocked materializes a recurrence seed as a new task
// positioned directly after its origin.
func (s *Store) spawnSuccessorLocked(seed *model.SuccessorSeed, origin *model.Task, now time.Time) *model.Task {
	t := model.NewTask(seed.Title, now)
	t.Notes = seed.Notes
	t.Priority = seed.Priority
	t.ListID = seed.ListID
	t.Tags = seed.Tags
	t.Rule = seed.Rule
	due := seed.DueDate
	t.DueDate = &due
	for _, st := range seed.Subtasks {
		t.AddSubtask(st.Title, now)
	}

	// Insert right after the origin, then renumber.
	idx := len(s.tasks)
	for i, cur := range s.tasks {
		if cur.ID == origin.ID {
			idx = i + 1
			break
		}
	}
	s.tasks = append(s.tasks, nil)
	copy(s.tasks[idx+1:], s.tasks[idx:])
	s.tasks[idx] = t
	s.renumberLocked()
	return t
}

// StartTimer starts a task's timer.
func (s *Store) StartTimer(id string) error {
	return s.withTask(id, func(t *model.Task, now time.Time) bool {
		return t.Start(now)
	})
}

// PauseTimer pauses a task's timer, banking the elapsed interval.
func (s *Store) PauseTimer(id string) error {
	return s.withTask(id, func(t *model.Task, now time.Time) bool {
		return t.Pause(now)
	})
}

// ToggleTimer starts or pauses a task's timer.
func (s *Store) ToggleTimer(id string) error {
	return s.withTask(id, func(t *model.Task, now time.Time) bool {
		t.ToggleTimer(now)
		return true
	})
}

// ResetTimer zeroes a task's banked time.
func (s *Store) ResetTimer(id string) error {
	return s.withTask(id, func(t *model.Task, now time.Time) bool {
		t.ResetTimer(now)
		return true
	})
}

// Move places a task at visible index newIndex and renumbers positions
// so the manual order stays total and duplicate-free. Both drag-drop
// and move-before/after funnel through here.
func (s *Store) Move(id string, newIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.liveIndexesLocked()
	from := -1
	for i, ti := range live {
		if s.tasks[ti].ID == id {
			from = i
			break
		}
	}
	if from == -1 {
		return fmt.Errorf("task %s not found", id)
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex >= len(live) {
		newIndex = len(live) - 1
	}
	if newIndex == from {
		return nil
	}

	// Reorder the underlying slice by moving the task's entry. After
	// removal the raw destination index lands the task just after the
	// target when moving down and just before it when moving up, which
	// is exactly visible index newIndex either way.
	srcIdx := live[from]
	dstIdx := live[newIndex]
	t := s.tasks[srcIdx]
	s.tasks = append(s.tasks[:srcIdx], s.tasks[srcIdx+1:]...)
	s.tasks = append(s.tasks[:dstIdx], append([]*model.Task{t}, s.tasks[dstIdx:]...)...)

	s.renumberLocked()
	s.mutatedLocked()
	return nil
}

// Sync runs one sync cycle and adopts the merged collection. The engine
// receives deep copies, so in-flight network work never aliases live
// store state. Adoption reconciles against the current collection
// rather than replacing it: a task mutated or created while the cycle
// was in flight keeps its local copy and dirty flags, and the next
// cycle pushes it.
func (s *Store) Sync(ctx context.Context) error {
	type snapState struct {
		updatedAt time.Time
		dirty     bool
		deleted   bool
	}

	s.mu.Lock()
	snapshot := make([]model.Task, 0, len(s.tasks))
	snapped := make(map[string]snapState, len(s.tasks))
	for _, t := range s.tasks {
		snapshot = append(snapshot, *t.Clone())
		snapped[t.ID] = snapState{t.UpdatedAt, t.Dirty, t.Deleted}
	}
	ownerID := s.cfg.OwnerID
	s.mu.Unlock()

	merged, ran, err := s.engine.Sync(ctx, ownerID, snapshot)
	if !ran {
		return err
	}

	s.mu.Lock()
	mutated := make(map[string]*model.Task)
	for _, t := range s.tasks {
		snap, inSnap := snapped[t.ID]
		if !inSnap || !t.UpdatedAt.Equal(snap.updatedAt) ||
			t.Dirty != snap.dirty || t.Deleted != snap.deleted {
			mutated[t.ID] = t
		}
	}

	next := make([]*model.Task, 0, len(merged)+len(mutated))
	for i := range merged {
		if lt, ok := mutated[merged[i].ID]; ok {
			// The merge result is stale for this task.
			next = append(next, lt)
			delete(mutated, merged[i].ID)
			continue
		}
		next = append(next, &merged[i])
	}
	for _, t := range s.tasks {
		if _, ok := mutated[t.ID]; ok {
			next = append(next, t)
			delete(mutated, t.ID)
		}
	}
	s.tasks = next
	s.sortByPositionLocked()
	s.renumberLocked()
	s.mutatedLocked()
	s.mu.Unlock()

	if err == nil {
		s.storage.SetLastSync(s.cfg.Clock())
	}
	return err
}

// Filters returns the current filter state.
func (s *Store) Filters() model.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SetFilters replaces the filter state and persists it.
func (s *Store) SetFilters(f model.FilterState) {
	s.mu.Lock()
	s.filters = f
	s.revision++
	s.mu.Unlock()
	s.storage.SaveFilters(f)
}

// Preferences returns the current user preferences.
func (s *Store) Preferences() model.UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetPreferences replaces the preferences and persists them.
func (s *Store) SetPreferences(p model.UserPreferences) {
	s.mu.Lock()
	s.prefs = p
	s.revision++
	s.mu.Unlock()
	s.storage.SavePreferences(p)
}

// Flush writes all pending state immediately, bypassing the debounce.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	tasks := s.snapshotTasksLocked()
	tags := append([]model.Tag(nil), s.tags...)
	lists := append([]model.TaskList(nil), s.lists...)
	s.mu.Unlock()

	s.storage.SaveTasks(tasks)
	s.storage.SaveTags(tags)
	s.storage.SaveLists(lists)
}

// Close flushes pending writes. The storage adapter is owned by the
// caller and closed separately.
func (s *Store) Close() {
	s.Flush()
}

// withTask runs a mutator against one live task under the lock,
// recording the mutation when the mutator reports a change.
func (s *Store) withTask(id string, fn func(*model.Task, time.Time) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil || t.Deleted {
		return fmt.Errorf("task %s not found", id)
	}
	if fn(t, s.cfg.Clock()) {
		s.mutatedLocked()
	}
	return nil
}

// mutatedLocked bumps the revision and schedules a debounced save.
// Callers must hold s.mu.
func (s *Store) mutatedLocked() {
	s.revision++
	if s.saveTimer != nil {
		// A write is already pending; it will pick up this change.
		return
	}
	s.saveTimer = time.AfterFunc(s.cfg.SaveDebounce, s.debouncedSave)
}

// debouncedSave is the deferred write scheduled by mutatedLocked.
func (s *Store) debouncedSave() {
	s.mu.Lock()
	s.saveTimer = nil
	tasks := s.snapshotTasksLocked()
	tags := append([]model.Tag(nil), s.tags...)
	lists := append([]model.TaskList(nil), s.lists...)
	s.mu.Unlock()

	s.storage.SaveTasks(tasks)
	s.storage.SaveTags(tags)
	s.storage.SaveLists(lists)
}

func (s *Store) findLocked(id string) *model.Task {
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Store) removeLocked(id string) {
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

func (s *Store) liveTasksLocked() []model.Task {
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.Deleted {
			out = append(out, *t.Clone())
		}
	}
	return out
}

func (s *Store) liveIndexesLocked() []int {
	var out []int
	for i, t := range s.tasks {
		if !t.Deleted {
			out = append(out, i)
		}
	}
	return out
}

func (s *Store) snapshotTasksLocked() []model.Task {
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t.Clone())
	}
	return out
}

func (s *Store) nextPositionLocked() int {
	max := -1
	for _, t := range s.tasks {
		if t.Position > max {
			max = t.Position
		}
	}
	return max + 1
}

// renumberLocked assigns sequential positions following slice order,
// dirtying only tasks whose position actually moved. Tombstones keep
// their slot so a restored task lands back where it was.
func (s *Store) renumberLocked() {
	now := s.cfg.Clock()
	for i, t := range s.tasks {
		if t.Position != i {
			t.Position = i
			t.Dirty = true
			t.UpdatedAt = now
		}
	}
}

// sortByPositionLocked restores position order after a merge, keeping
// insertion order for equal positions.
func (s *Store) sortByPositionLocked() {
	sort.SliceStable(s.tasks, func(i, j int) bool {
		return s.tasks[i].Position < s.tasks[j].Position
	})
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("title must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", fmt.Errorf("title exceeds %d characters", maxTitleLen)
	}
	return title, nil
}
