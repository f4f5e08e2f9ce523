package model

// Status filter values.
const (
	StatusAll       = "all"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusOverdue   = "overdue"
)

// Sort field values.
const (
	SortManual   = "manual"
	SortPriority = "priority"
	SortDueDate  = "due_date"
	SortAlpha    = "alpha"
)

// Grouping modes.
const (
	GroupNone     = "none"
	GroupPriority = "priority"
	GroupDueDate  = "due_date"
)

// FilterState is the user's current query configuration: which tasks to
// show and how to order and group them. Persisted locally, never synced.
type FilterState struct {
	// Priority narrows to one priority level; "all" disables it.
	Priority string `json:"priority"`

	// Status is one of the Status* constants.
	Status string `json:"status"`

	// Tags narrows to tasks carrying every selected tag.
	Tags []string `json:"tags,omitempty"`

	// HasDueDate, when non-nil, keeps only tasks with (true) or
	// without (false) a due date.
	HasDueDate *bool `json:"has_due_date,omitempty"`

	// ListID scopes to a single list; empty means all lists.
	ListID string `json:"list_id,omitempty"`

	SortBy   string `json:"sort_by"`
	SortDesc bool   `json:"sort_desc"`
	GroupBy  string `json:"group_by"`
}

// DefaultFilterState returns the initial query configuration.
func DefaultFilterState() FilterState {
	return FilterState{
		Priority: "all",
		Status:   StatusAll,
		SortBy:   SortManual,
		GroupBy:  GroupNone,
	}
}
