// Package query derives what the UI should render from the task
// collection and the current filter state. Every function is pure:
// same inputs, same output, no hidden state, safe to memoize.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/dnguyen/tasktick/internal/model"
)

// Apply filters and sorts tasks according to f, evaluated at now (the
// overdue check needs a reference time). The input slice is not
// modified; sorting is stable, so equal keys keep their relative order.
func Apply(tasks []model.Task, f model.FilterState, now time.Time) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, f, now) {
			out = append(out, t)
		}
	}
	sortTasks(out, f.SortBy, f.SortDesc)
	return out
}

// matches evaluates the intersection of all active filters.
func matches(t model.Task, f model.FilterState, now time.Time) bool {
	if f.Priority != "" && f.Priority != "all" &&
		t.Priority != model.Priority(f.Priority) {
		return false
	}

	switch f.Status {
	case model.StatusActive:
		if t.Completed {
			return false
		}
	case model.StatusCompleted:
		if !t.Completed {
			return false
		}
	case model.StatusOverdue:
		if t.Completed || t.DueDate == nil || !t.DueDate.Before(now) {
			return false
		}
	}

	for _, want := range f.Tags {
		if !hasTag(t, want) {
			return false
		}
	}

	if f.HasDueDate != nil && *f.HasDueDate != (t.DueDate != nil) {
		return false
	}

	if f.ListID != "" && t.ListID != f.ListID {
		return false
	}

	return true
}

func hasTag(t model.Task, name string) bool {
	for _, tag := range t.Tags {
		if tag == name {
			return true
		}
	}
	return false
}

// sortTasks orders tasks in place by the selected field. The descending
// toggle flips the comparison, not the stability.
func sortTasks(tasks []model.Task, sortBy string, desc bool) {
	var less func(a, b model.Task) bool

	switch sortBy {
	case model.SortPriority:
		less = func(a, b model.Task) bool {
			return model.PriorityRank[a.Priority] < model.PriorityRank[b.Priority]
		}
	case model.SortDueDate:
		less = func(a, b model.Task) bool {
			// Undated tasks sort last in ascending order.
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return false
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			}
			return a.DueDate.Before(*b.DueDate)
		}
	case model.SortAlpha:
		less = func(a, b model.Task) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	default: // model.SortManual
		less = func(a, b model.Task) bool {
			return a.Position < b.Position
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

// Group is one partition of the task list.
type Group struct {
	// Key identifies the partition: a priority level for priority
	// grouping, a due bucket name for due-date grouping.
	Key   string
	Tasks []model.Task
}

// Due bucket keys, in display order.
const (
	BucketOverdue  = "overdue"
	BucketToday    = "today"
	BucketThisWeek = "this_week"
	BucketLater    = "later"
	BucketNoDate   = "no_date"
)

// GroupTasks partitions an already filtered and sorted list. Grouping
// "none" yields a single unkeyed group. Group order is fixed (priority
// rank, or due bucket nearness); within a group the incoming order is
// preserved.
func GroupTasks(tasks []model.Task, groupBy string, now time.Time) []Group {
	switch groupBy {
	case model.GroupPriority:
		return groupByKeys(tasks,
			[]string{
				string(model.PriorityHigh),
				string(model.PriorityMedium),
				string(model.PriorityLow),
				string(model.PriorityNone),
			},
			func(t model.Task) string { return string(t.Priority) },
		)
	case model.GroupDueDate:
		return groupByKeys(tasks,
			[]string{BucketOverdue, BucketToday, BucketThisWeek, BucketLater, BucketNoDate},
			func(t model.Task) string { return dueBucket(t, now) },
		)
	default:
		return []Group{{Tasks: tasks}}
	}
}

func groupByKeys(tasks []model.Task, keys []string, keyOf func(model.Task) string) []Group {
	buckets := make(map[string][]model.Task, len(keys))
	for _, t := range tasks {
		k := keyOf(t)
		buckets[k] = append(buckets[k], t)
	}

	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		if len(buckets[k]) > 0 {
			out = append(out, Group{Key: k, Tasks: buckets[k]})
		}
	}
	return out
}

// dueBucket classifies a task's due date relative to now.
func dueBucket(t model.Task, now time.Time) string {
	if t.DueDate == nil {
		return BucketNoDate
	}
	due := *t.DueDate

	if due.Before(now) && !t.Completed {
		return BucketOverdue
	}

	y1, m1, d1 := due.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return BucketToday
	}

	if due.Before(now.AddDate(0, 0, 7)) {
		return BucketThisWeek
	}
	return BucketLater
}
