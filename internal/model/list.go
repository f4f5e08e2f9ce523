package model

import "time"

// DefaultListID is the list tasks fall back to when their own list is
// deleted. The default list itself cannot be removed.
const DefaultListID = "inbox"

// TaskList is a grouping container for related tasks.
type TaskList struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultLists returns the built-in list set for a fresh install.
func DefaultLists(now time.Time) []TaskList {
	return []TaskList{
		{ID: DefaultListID, Name: "Inbox", Icon: "inbox", CreatedAt: now},
	}
}
