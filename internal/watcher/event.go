package watcher

import "time"

// EventType represents the type of file system event
type EventType int

const (
	// EventChanged is emitted when a file was created or written and has settled.
	EventChanged EventType = iota
	// EventRemoved is emitted when a file is deleted or renamed away.
	EventRemoved
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a file system event
type Event struct {
	Type EventType
	Path string
	// Size and ModTime are zero for removals.
	Size    int64
	ModTime time.Time
}
