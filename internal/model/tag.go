package model

import "time"

// Tag is a cross-cutting label for categorizing tasks. Tasks reference
// tags by name in their tag set.
type Tag struct {
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
