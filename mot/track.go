package mot

import "time"

// Track is a persistent identity assigned to a region of detections across cycles.
// Tracks are owned by TrackStore; other components refer to them by ID only.
type Track struct {
	ID       int
	Rect     Position
	LastSeen time.Time
	// Last detection associated with the track
	Detection MappedDetection
}

// Tracked converts track into outbound record. Position is the raw track rectangle.
func (track Track) Tracked() TrackedDetection {
	return TrackedDetection{
		TrackID:  track.ID,
		Identity: track.Detection.Identity,
		Position: track.Rect,
		Metadata: track.Detection.Metadata,
	}
}

// IsGhost reports whether track has not been refreshed at given moment
func (track Track) IsGhost(now time.Time) bool {
	return track.LastSeen.Before(now)
}
