package mot

import (
	"time"
)

// DefaultGraceWindow is how long unmatched track is kept alive as a ghost
const DefaultGraceWindow = 500 * time.Millisecond

// TrackStore is the single owner and mutator of tracks list.
// It is not safe for concurrent use: Engine serializes access.
type TrackStore struct {
	tracks      []Track
	nextID      int
	graceWindow time.Duration
}

// NewTrackStoreDefault creates store with DefaultGraceWindow
func NewTrackStoreDefault() *TrackStore {
	return NewTrackStore(DefaultGraceWindow)
}

// NewTrackStore creates new instance of TrackStore
func NewTrackStore(graceWindow time.Duration) *TrackStore {
	return &TrackStore{
		tracks:      make([]Track, 0),
		nextID:      1,
		graceWindow: graceWindow,
	}
}

// Tracks returns copy of current tracks list
func (store *TrackStore) Tracks() []Track {
	tracks := make([]Track, len(store.tracks))
	copy(tracks, store.tracks)
	return tracks
}

// Len returns number of tracks (including ghosts)
func (store *TrackStore) Len() int {
	return len(store.tracks)
}

// GraceWindow returns configured ghost lifetime
func (store *TrackStore) GraceWindow() time.Duration {
	return store.graceWindow
}

// Update applies association result to the store.
// Matched tracks are refreshed, unmatched detections spawn tracks with fresh IDs and
// unclaimed tracks survive only while now-lastSeen < grace window.
// Returns new canonical list (detections in input order, then ghosts) and IDs of evicted tracks.
func (store *TrackStore) Update(now time.Time, detections []MappedDetection, assoc Association) ([]Track, []int) {
	updated := make([]Track, 0, len(detections)+len(store.tracks))
	claimed := make([]bool, len(store.tracks))
	for detIdx, detection := range detections {
		trackIdx := assoc.TrackIndex(detIdx)
		if trackIdx >= 0 && trackIdx < len(store.tracks) && !claimed[trackIdx] {
			claimed[trackIdx] = true
			track := store.tracks[trackIdx]
			track.Rect = detection.Position
			track.LastSeen = now
			track.Detection = detection
			updated = append(updated, track)
			continue
		}
		updated = append(updated, Track{
			ID:        store.allocateID(),
			Rect:      detection.Position,
			LastSeen:  now,
			Detection: detection,
		})
	}

	evicted := make([]int, 0)
	for trackIdx, track := range store.tracks {
		if claimed[trackIdx] {
			continue
		}
		if now.Sub(track.LastSeen) < store.graceWindow {
			updated = append(updated, track)
			continue
		}
		evicted = append(evicted, track.ID)
	}

	store.tracks = updated
	return store.Tracks(), evicted
}

// Expire evicts tracks whose grace window has elapsed at given moment and returns their IDs.
// Calling it before association keeps stale tracks from being matched after a long pause between cycles.
func (store *TrackStore) Expire(now time.Time) []int {
	evicted := make([]int, 0)
	kept := store.tracks[:0]
	for _, track := range store.tracks {
		if now.Sub(track.LastSeen) < store.graceWindow {
			kept = append(kept, track)
			continue
		}
		evicted = append(evicted, track.ID)
	}
	store.tracks = kept
	return evicted
}

func (store *TrackStore) allocateID() int {
	id := store.nextID
	store.nextID++
	return id
}
