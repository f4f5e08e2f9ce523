package model

// UserPreferences holds local-only user settings. Never synced.
type UserPreferences struct {
	// DefaultEstimateMinutes seeds a new task's estimated duration.
	DefaultEstimateMinutes int `json:"default_estimate_minutes"`

	// DurationPresets are quick-pick estimate values, in minutes.
	DurationPresets []int `json:"duration_presets,omitempty"`

	Theme string `json:"theme"`
}

// DefaultPreferences returns the initial preference set.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		DefaultEstimateMinutes: 25,
		DurationPresets:        []int{5, 15, 25, 45, 60},
		Theme:                  "default",
	}
}
