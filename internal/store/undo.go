package store

import (
	"fmt"
	"time"
)

// undoType classifies the destructive action an entry reverses.
type undoType string

const (
	undoDeleteTask     undoType = "delete-task"
	undoCompleteTask   undoType = "complete-task"
	undoUpdateTask     undoType = "update-task"
	undoClearCompleted undoType = "clear-completed"
)

// undoEntry is one reversible action. The restore closure captures the
// snapshots it needs and runs with s.mu held. Entries live only in
// memory; a reload empties the buffer.
type undoEntry struct {
	typ     undoType
	at      time.Time
	restore func()
}

// pushUndoLocked appends an entry to the ring buffer, evicting the
// oldest when full. Callers must hold s.mu.
func (s *Store) pushUndoLocked(typ undoType, at time.Time, restore func()) {
	if len(s.undo) >= s.cfg.UndoLimit {
		s.undo = s.undo[1:]
	}
	s.undo = append(s.undo, undoEntry{typ: typ, at: at, restore: restore})
}

// CanUndo reports whether an unexpired undo entry is available.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireUndoLocked()
	return len(s.undo) > 0
}

// Undo reverses the most recent destructive action. Entries older than
// the configured TTL have expired and can no longer be undone.
func (s *Store) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireUndoLocked()
	if len(s.undo) == 0 {
		return fmt.Errorf("nothing to undo")
	}

	entry := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	entry.restore()
	s.mutatedLocked()
	return nil
}

// expireUndoLocked drops entries past their TTL. Entries are in
// chronological order, so a single cut point suffices.
func (s *Store) expireUndoLocked() {
	cutoff := s.cfg.Clock().Add(-s.cfg.UndoTTL)
	keepFrom := len(s.undo)
	for i, e := range s.undo {
		if e.at.After(cutoff) {
			keepFrom = i
			break
		}
	}
	s.undo = s.undo[keepFrom:]
}
