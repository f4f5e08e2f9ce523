package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dnguyen/tasktick/internal/model"
)

// AddSubtask appends a subtask to a task and returns it.
func (s *Store) AddSubtask(taskID, title string) (*model.Subtask, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(taskID)
	if t == nil || t.Deleted {
		return nil, fmt.Errorf("task %s not found", taskID)
	}
	st := t.AddSubtask(title, s.cfg.Clock())
	s.mutatedLocked()
	return &st, nil
}

// ToggleSubtask flips a subtask's done flag.
func (s *Store) ToggleSubtask(taskID, subtaskID string) error {
	return s.withTask(taskID, func(t *model.Task, now time.Time) bool {
		return t.ToggleSubtask(subtaskID, now)
	})
}

// RenameSubtask retitles a subtask.
func (s *Store) RenameSubtask(taskID, subtaskID, title string) error {
	title, err := validateTitle(title)
	if err != nil {
		return err
	}
	return s.withTask(taskID, func(t *model.Task, now time.Time) bool {
		return t.RenameSubtask(subtaskID, title, now)
	})
}

// RemoveSubtask deletes a subtask.
func (s *Store) RemoveSubtask(taskID, subtaskID string) error {
	return s.withTask(taskID, func(t *model.Task, now time.Time) bool {
		return t.RemoveSubtask(subtaskID, now)
	})
}

// Tags returns the defined tags.
func (s *Store) Tags() []model.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Tag(nil), s.tags...)
}

// AddTag defines a new tag. Names are unique, case-insensitively.
func (s *Store) AddTag(name, color string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tag := range s.tags {
		if strings.EqualFold(tag.Name, name) {
			return nil, fmt.Errorf("tag %q already exists", name)
		}
	}

	tag := model.Tag{Name: name, Color: color, CreatedAt: s.cfg.Clock()}
	s.tags = append(s.tags, tag)
	s.mutatedLocked()
	return &tag, nil
}

// DeleteTag removes a tag definition and strips it from every task's
// tag set, dirtying each affected task. Undoable as one action.
func (s *Store) DeleteTag(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, tag := range s.tags {
		if tag.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("tag %q not found", name)
	}

	removed := s.tags[idx]
	now := s.cfg.Clock()

	var affected []*model.Task
	for _, t := range s.tasks {
		if t.Deleted {
			continue
		}
		kept := t.Tags[:0:0]
		for _, tg := range t.Tags {
			if tg != name {
				kept = append(kept, tg)
			}
		}
		if len(kept) != len(t.Tags) {
			affected = append(affected, t.Clone())
			t.Tags = kept
			t.Dirty = true
			t.UpdatedAt = now
		}
	}

	s.tags = append(s.tags[:idx], s.tags[idx+1:]...)

	s.pushUndoLocked(undoUpdateTask, now, func() {
		s.tags = append(s.tags, removed)
		for _, snap := range affected {
			if cur := s.findLocked(snap.ID); cur != nil {
				cur.Tags = snap.Tags
				cur.Dirty = true
			}
		}
	})
	s.mutatedLocked()
	return nil
}

// Lists returns the defined task lists.
func (s *Store) Lists() []model.TaskList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TaskList(nil), s.lists...)
}

// AddList defines a new list.
func (s *Store) AddList(name, color, icon string) (*model.TaskList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("list name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := model.TaskList{
		ID:        uuid.New().String(),
		Name:      name,
		Color:     color,
		Icon:      icon,
		Position:  len(s.lists),
		CreatedAt: s.cfg.Clock(),
	}
	s.lists = append(s.lists, list)
	s.mutatedLocked()
	return &list, nil
}

// DeleteList removes a non-default list, reassigning its tasks to the
// default list and dirtying each. Undoable as one action.
func (s *Store) DeleteList(id string) error {
	if id == model.DefaultListID {
		return fmt.Errorf("the default list cannot be deleted")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, l := range s.lists {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("list %s not found", id)
	}

	removed := s.lists[idx]
	now := s.cfg.Clock()

	var affected []string
	for _, t := range s.tasks {
		if t.Deleted || t.ListID != id {
			continue
		}
		affected = append(affected, t.ID)
		t.ListID = model.DefaultListID
		t.Dirty = true
		t.UpdatedAt = now
	}

	s.lists = append(s.lists[:idx], s.lists[idx+1:]...)

	s.pushUndoLocked(undoUpdateTask, now, func() {
		s.lists = append(s.lists, removed)
		for _, taskID := range affected {
			if cur := s.findLocked(taskID); cur != nil {
				cur.ListID = id
				cur.Dirty = true
			}
		}
	})
	s.mutatedLocked()
	return nil
}

// ClearCompleted tombstones every completed task in one undoable sweep.
// Returns the number of tasks cleared.
func (s *Store) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Clock()
	var snapshots []*model.Task
	for _, t := range s.tasks {
		if t.Deleted || !t.Completed {
			continue
		}
		snapshots = append(snapshots, t.Clone())
		t.Deleted = true
		t.Dirty = true
		t.UpdatedAt = now
	}
	if len(snapshots) == 0 {
		return 0
	}

	s.pushUndoLocked(undoClearCompleted, now, func() {
		for _, snap := range snapshots {
			if cur := s.findLocked(snap.ID); cur != nil {
				*cur = *snap
				cur.Dirty = true
			}
		}
	})
	s.mutatedLocked()
	return len(snapshots)
}
