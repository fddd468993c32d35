package playback

import "github.com/osa030/tubebox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // Track entered the playback slot
	EventTrackEnded                    // Track finished on its own
	EventTrackSkipped                  // Track was abandoned by a skip request
	EventTrackStopped                  // Session was stopped (shutdown or device failure)
	EventTrackFailed                   // Track could not be resolved or loaded
	EventStateChanged                  // Playback state changed (pause/resume)
	EventProgress                      // Position advanced by one tick
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventTrackStopped:
		return "track_stopped"
	case EventTrackFailed:
		return "track_failed"
	case EventStateChanged:
		return "state_changed"
	case EventProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type   EventType
	Track  *track.Track // Track the event refers to (nil for none)
	Status Status       // Engine status right after the event
	Err    error        // Failure cause for EventTrackFailed
}
