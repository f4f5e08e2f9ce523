package remote

import (
	"time"

	"github.com/dnguyen/tasktick/internal/model"
	"github.com/dnguyen/tasktick/internal/recurrence"
)

// wireTask is the task representation exchanged with the backend. It is
// a deliberate field-by-field mapping rather than a reuse of model.Task
// so that local sync metadata (dirty/new/deleted flags, sync errors) can
// never leak onto the wire, and so wire renames stay in one place.
type wireTask struct {
	ID            string           `json:"id"`
	OwnerID       string           `json:"owner_id,omitempty"`
	Title         string           `json:"title"`
	Notes         string           `json:"notes,omitempty"`
	Priority      string           `json:"priority"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	ListID        string           `json:"list_id,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	Subtasks      []wireSubtask    `json:"subtasks,omitempty"`
	Recurrence    *recurrence.Rule `json:"recurrence,omitempty"`
	AccumulatedMs int64            `json:"accumulated_ms"`
	LastStart     *time.Time       `json:"last_start,omitempty"`
	EstimatedMs   int64            `json:"estimated_ms,omitempty"`
	Completed     bool             `json:"completed"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Position      int              `json:"position"`
}

type wireSubtask struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Done     bool   `json:"done"`
	Position int    `json:"position"`
}

// toWire converts a local task to its wire form, dropping sync metadata.
func toWire(t model.Task, ownerID string) wireTask {
	w := wireTask{
		ID:            t.ID,
		OwnerID:       ownerID,
		Title:         t.Title,
		Notes:         t.Notes,
		Priority:      string(t.Priority),
		DueDate:       t.DueDate,
		ListID:        t.ListID,
		Tags:          t.Tags,
		Recurrence:    t.Rule,
		AccumulatedMs: t.AccumulatedMs,
		LastStart:     t.LastStart,
		EstimatedMs:   t.EstimatedMs,
		Completed:     t.Completed,
		CompletedAt:   t.CompletedAt,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Position:      t.Position,
	}
	for _, st := range t.Subtasks {
		w.Subtasks = append(w.Subtasks, wireSubtask(st))
	}
	return w
}

// fromWire converts a wire task back to the local model. The result is
// clean: all sync flags are zero.
func fromWire(w wireTask) model.Task {
	t := model.Task{
		ID:            w.ID,
		Title:         w.Title,
		Notes:         w.Notes,
		Priority:      model.Priority(w.Priority),
		DueDate:       w.DueDate,
		ListID:        w.ListID,
		Tags:          w.Tags,
		Rule:          w.Recurrence,
		AccumulatedMs: w.AccumulatedMs,
		LastStart:     w.LastStart,
		EstimatedMs:   w.EstimatedMs,
		Completed:     w.Completed,
		CompletedAt:   w.CompletedAt,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
		Position:      w.Position,
	}
	if !model.ValidPriority(t.Priority) {
		t.Priority = model.PriorityNone
	}
	for _, st := range w.Subtasks {
		t.Subtasks = append(t.Subtasks, model.Subtask(st))
	}
	return t
}
