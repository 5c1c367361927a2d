package domain

import "time"

// CycleStats holds statistics about one synchronization cycle.
type CycleStats struct {
	PatternsAdded   int
	PatternsRetired int
	Listed          int
	New             int
	Matched         int
	Downloaded      int
	AlreadyPresent  int
	Errors          int
	Published       int
	Duration        time.Duration
}

const (
	ActionDiscovered = "item.discovered"
	ActionDownloaded = "item.downloaded"
)

// ItemEvent is emitted to the event publisher on item transitions.
type ItemEvent struct {
	Action  string
	Item    Item
	Pattern *Pattern
}
