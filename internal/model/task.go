package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/dnguyen/tasktick/internal/recurrence"
)

// Priority levels for a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

// PriorityRank maps a priority to its sort rank (high sorts first).
var PriorityRank = map[Priority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
	PriorityNone:   3,
}

// ValidPriority reports whether p is one of the defined priority levels.
func ValidPriority(p Priority) bool {
	_, ok := PriorityRank[p]
	return ok
}

// Subtask is a small sub-entry within a task. Its lifecycle is bound to
// the parent task.
type Subtask struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Done     bool   `json:"done"`
	Position int    `json:"position"`
}

// Task is a local task item with its own timer and completion state
// machine. All mutators are pure and synchronous: they take the caller's
// notion of "now" and never perform I/O. Validation of user input (empty
// titles, out-of-range fields) happens in the collection store before a
// mutator is reached.
type Task struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Notes    string           `json:"notes,omitempty"`
	Priority Priority         `json:"priority"`
	DueDate  *time.Time       `json:"due_date,omitempty"`
	ListID   string           `json:"list_id,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
	Subtasks []Subtask        `json:"subtasks,omitempty"`
	Rule     *recurrence.Rule `json:"recurrence,omitempty"`

	// AccumulatedMs is banked running time in milliseconds. It never
	// decreases except through an explicit reset.
	AccumulatedMs int64 `json:"accumulated_ms"`

	// LastStart is non-nil exactly while the timer is running.
	LastStart *time.Time `json:"last_start,omitempty"`

	// EstimatedMs is an optional target duration (0 = unset).
	EstimatedMs int64 `json:"estimated_ms,omitempty"`

	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Position defines manual ordering within a list.
	Position int `json:"position"`

	// Sync metadata. Persisted in the local snapshot so flags survive a
	// reload, but never sent to the remote backend (the wire codec in
	// the remote package strips them).
	Dirty     bool   `json:"dirty,omitempty"`
	IsNew     bool   `json:"is_new,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
	SyncError string `json:"sync_error,omitempty"`
}

// NewTask constructs a task with a fresh ID and creation timestamps.
// New tasks are born dirty and unpushed.
func NewTask(title string, now time.Time) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Title:     title,
		Priority:  PriorityNone,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
		IsNew:     true,
	}
}

// IsRunning reports whether the timer is currently accumulating time.
func (t *Task) IsRunning() bool {
	return t.LastStart != nil && !t.Completed
}

// CurrentTimeMs returns the total tracked time as of now: banked time
// plus the in-flight interval when running. Read-only; safe to poll for
// live display without dirtying the task.
func (t *Task) CurrentTimeMs(now time.Time) int64 {
	if !t.IsRunning() {
		return t.AccumulatedMs
	}
	return t.AccumulatedMs + clampElapsedMs(*t.LastStart, now)
}

// Start begins the timer. No-op on a completed or already-running task.
func (t *Task) Start(now time.Time) bool {
	if t.Completed || t.IsRunning() {
		return false
	}
	start := now
	t.LastStart = &start
	t.touch(now)
	return true
}

// Pause stops the timer, folding the elapsed interval into
// AccumulatedMs. Clock skew producing a negative interval contributes
// zero. No-op when not running.
func (t *Task) Pause(now time.Time) bool {
	if !t.IsRunning() {
		return false
	}
	t.AccumulatedMs += clampElapsedMs(*t.LastStart, now)
	t.LastStart = nil
	t.touch(now)
	return true
}

// ToggleTimer starts the timer when stopped and pauses it when running.
func (t *Task) ToggleTimer(now time.Time) {
	if t.IsRunning() {
		t.Pause(now)
	} else {
		t.Start(now)
	}
}

// ResetTimer zeroes the banked time, pausing first when running.
func (t *Task) ResetTimer(now time.Time) {
	if t.IsRunning() {
		t.Pause(now)
	}
	t.AccumulatedMs = 0
	t.touch(now)
}

// SuccessorSeed carries the fields a spawned recurring task inherits
// from its completed predecessor. DueDate is the already-shifted next
// occurrence. The collection store turns a seed into a real task with a
// fresh ID and position.
type SuccessorSeed struct {
	Title    string
	Notes    string
	Priority Priority
	ListID   string
	Tags     []string
	Subtasks []Subtask
	DueDate  time.Time
	Rule     *recurrence.Rule
}

// ToggleComplete flips completion state. Completing a running task
// pauses it first so the in-flight interval is not lost. When the task
// carries a recurrence rule and is being completed, the returned seed
// describes the successor to spawn; nil otherwise.
func (t *Task) ToggleComplete(now time.Time) *SuccessorSeed {
	if t.Completed {
		t.Completed = false
		t.CompletedAt = nil
		t.touch(now)
		return nil
	}

	if t.IsRunning() {
		t.Pause(now)
	}
	done := now
	t.Completed = true
	t.CompletedAt = &done
	t.touch(now)

	if t.Rule == nil {
		return nil
	}

	// Shift from the due date so the successor keeps the original
	// time-of-day; undated recurring tasks shift from completion time.
	base := now
	if t.DueDate != nil {
		base = *t.DueDate
	}
	next, ok := recurrence.Next(*t.Rule, base)
	if !ok {
		return nil
	}

	seed := &SuccessorSeed{
		Title:    t.Title,
		Notes:    t.Notes,
		Priority: t.Priority,
		ListID:   t.ListID,
		Tags:     append([]string(nil), t.Tags...),
		DueDate:  next,
		Rule:     t.Rule.Clone(),
	}
	for _, st := range t.Subtasks {
		seed.Subtasks = append(seed.Subtasks, Subtask{
			Title:    st.Title,
			Position: st.Position,
		})
	}
	return seed
}

// AddSubtask appends a subtask with a fresh ID.
func (t *Task) AddSubtask(title string, now time.Time) Subtask {
	st := Subtask{
		ID:       uuid.New().String(),
		Title:    title,
		Position: len(t.Subtasks),
	}
	t.Subtasks = append(t.Subtasks, st)
	t.touch(now)
	return st
}

// ToggleSubtask flips a subtask's done flag. Returns false when no
// subtask has the given ID.
func (t *Task) ToggleSubtask(id string, now time.Time) bool {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			t.Subtasks[i].Done = !t.Subtasks[i].Done
			t.touch(now)
			return true
		}
	}
	return false
}

// RenameSubtask updates a subtask's title.
func (t *Task) RenameSubtask(id, title string, now time.Time) bool {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			if t.Subtasks[i].Title == title {
				return false
			}
			t.Subtasks[i].Title = title
			t.touch(now)
			return true
		}
	}
	return false
}

// RemoveSubtask deletes a subtask and renumbers the remainder.
func (t *Task) RemoveSubtask(id string, now time.Time) bool {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
			for j := range t.Subtasks {
				t.Subtasks[j].Position = j
			}
			t.touch(now)
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Used for undo snapshots and to hand the
// sync engine a collection it can merge without aliasing store state.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.LastStart != nil {
		d := *t.LastStart
		c.LastStart = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	c.Tags = append([]string(nil), t.Tags...)
	c.Subtasks = append([]Subtask(nil), t.Subtasks...)
	c.Rule = t.Rule.Clone()
	return &c
}

// touch marks the task dirty and advances its modification time.
func (t *Task) touch(now time.Time) {
	t.Dirty = true
	t.UpdatedAt = now
}

func clampElapsedMs(start, now time.Time) int64 {
	ms := now.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
