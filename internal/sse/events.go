// Package sse streams player state and library changes to clients over
// Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/listenup-player/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventPlayerState carries a full player snapshot.
	EventPlayerState EventType = "player.state"

	// EventScanComplete represents a library rescan.
	EventScanComplete EventType = "library.scan_completed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// ScanCompleteEventData is the data payload for scan complete events.
type ScanCompleteEventData struct {
	CompletedAt   time.Time `json:"completed_at"`
	TracksTotal   int       `json:"tracks_total"`
	TracksAdded   int       `json:"tracks_added"`
	TracksRemoved int       `json:"tracks_removed"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewPlayerStateEvent creates a player.state event.
func NewPlayerStateEvent(state domain.PlayerState) Event {
	return Event{
		Type:      EventPlayerState,
		Data:      state,
		Timestamp: time.Now(),
	}
}

// NewScanCompleteEvent creates a library.scan_completed event.
func NewScanCompleteEvent(total, added, removed int) Event {
	return Event{
		Type: EventScanComplete,
		Data: ScanCompleteEventData{
			CompletedAt:   time.Now(),
			TracksTotal:   total,
			TracksAdded:   added,
			TracksRemoved: removed,
		},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
