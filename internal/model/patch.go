package model

import (
	"time"

	"github.com/dnguyen/tasktick/internal/recurrence"
)

// TaskPatch is a partial update with explicit, whitelisted fields. A nil
// pointer means "leave unchanged". Double pointers distinguish "set to
// null" from "leave unchanged" for nullable fields.
type TaskPatch struct {
	Title       *string
	Notes       *string
	Priority    *Priority
	DueDate     **time.Time
	ListID      *string
	Tags        *[]string
	EstimatedMs *int64
	Position    *int
	Rule        **recurrence.Rule
}

// Apply merges the patch into the task. The task is only marked dirty
// (and UpdatedAt advanced) when at least one field actually changes; a
// no-op patch leaves the task untouched.
func (t *Task) Apply(p TaskPatch, now time.Time) bool {
	changed := false

	if p.Title != nil && *p.Title != t.Title {
		t.Title = *p.Title
		changed = true
	}
	if p.Notes != nil && *p.Notes != t.Notes {
		t.Notes = *p.Notes
		changed = true
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		t.Priority = *p.Priority
		changed = true
	}
	if p.DueDate != nil && !timePtrEqual(*p.DueDate, t.DueDate) {
		t.DueDate = copyTimePtr(*p.DueDate)
		changed = true
	}
	if p.ListID != nil && *p.ListID != t.ListID {
		t.ListID = *p.ListID
		changed = true
	}
	if p.Tags != nil && !stringSliceEqual(*p.Tags, t.Tags) {
		t.Tags = append([]string(nil), (*p.Tags)...)
		changed = true
	}
	if p.EstimatedMs != nil && *p.EstimatedMs != t.EstimatedMs {
		t.EstimatedMs = *p.EstimatedMs
		changed = true
	}
	if p.Position != nil && *p.Position != t.Position {
		t.Position = *p.Position
		changed = true
	}
	if p.Rule != nil && !ruleEqual(*p.Rule, t.Rule) {
		t.Rule = (*p.Rule).Clone()
		changed = true
	}

	if changed {
		t.touch(now)
	}
	return changed
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func ruleEqual(a, b *recurrence.Rule) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || a.Interval != b.Interval {
		return false
	}
	if len(a.Days) != len(b.Days) {
		return false
	}
	for i := range a.Days {
		if a.Days[i] != b.Days[i] {
			return false
		}
	}
	return timePtrEqual(a.EndDate, b.EndDate)
}
