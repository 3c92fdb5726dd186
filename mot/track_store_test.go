package mot

import (
	"testing"
	"time"
)

func cycle(store *TrackStore, now time.Time, detections ...MappedDetection) ([]Track, []int) {
	assoc := Associate(detections, store.Tracks(), 250)
	return store.Update(now, detections, assoc)
}

func TestTrackStoreGhostRecovery(t *testing.T) {
	store := NewTrackStoreDefault()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tracks, _ := cycle(store, start, mapped(100, 100, 50, 50))
	if len(tracks) != 1 || tracks[0].ID != 1 {
		t.Fatalf("Expected single track with ID 1, got %+v", tracks)
	}

	// Subject missing for a few cycles: track is kept as ghost
	tracks, evicted := cycle(store, start.Add(200*time.Millisecond))
	if len(evicted) != 0 || len(tracks) != 1 {
		t.Fatalf("Expected ghost to be retained, got tracks %+v evicted %v", tracks, evicted)
	}
	if !tracks[0].IsGhost(start.Add(200 * time.Millisecond)) {
		t.Error("Track should be reported as ghost")
	}

	// Subject is back near its last known position
	tracks, _ = cycle(store, start.Add(400*time.Millisecond), mapped(105, 102, 50, 50))
	if len(tracks) != 1 || tracks[0].ID != 1 {
		t.Fatalf("Expected recovered track with ID 1, got %+v", tracks)
	}
	if tracks[0].Rect != NewPosition(105, 102, 50, 50) {
		t.Errorf("Track rectangle should be refreshed, got %v", tracks[0].Rect)
	}
}

func TestTrackStoreGhostExpires(t *testing.T) {
	store := NewTrackStoreDefault()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cycle(store, start, mapped(100, 100, 50, 50))
	tracks, evicted := cycle(store, start.Add(499*time.Millisecond))
	if len(tracks) != 1 || len(evicted) != 0 {
		t.Fatalf("Track should survive 499ms gap, got tracks %+v evicted %v", tracks, evicted)
	}
	tracks, evicted = cycle(store, start.Add(500*time.Millisecond))
	if len(tracks) != 0 {
		t.Errorf("Expected no tracks after grace window, got %+v", tracks)
	}
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Errorf("Expected track 1 to be evicted, got %v", evicted)
	}

	tracks, _ = cycle(store, start.Add(600*time.Millisecond), mapped(100, 100, 50, 50))
	if len(tracks) != 1 || tracks[0].ID != 2 {
		t.Errorf("Expected fresh track with ID 2, got %+v", tracks)
	}
}

func TestTrackStoreExpire(t *testing.T) {
	store := NewTrackStore(100 * time.Millisecond)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cycle(store, start, mapped(0, 0, 10, 10), mapped(500, 0, 10, 10))
	cycle(store, start.Add(50*time.Millisecond), mapped(500, 0, 10, 10))

	evicted := store.Expire(start.Add(120 * time.Millisecond))
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Errorf("Expected track 1 to expire, got %v", evicted)
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 remaining track, got %d", store.Len())
	}
	if store.GraceWindow() != 100*time.Millisecond {
		t.Errorf("Unexpected grace window %v", store.GraceWindow())
	}
}

func TestTrackStoreOrderAndUniqueIDs(t *testing.T) {
	store := NewTrackStoreDefault()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cycle(store, now, mapped(0, 0, 10, 10), mapped(400, 0, 10, 10))
	now = now.Add(40 * time.Millisecond)
	// First subject is missing, third subject appears
	tracks, _ := cycle(store, now, mapped(402, 0, 10, 10), mapped(800, 800, 10, 10))

	// Detections in input order first, then ghosts
	expectedIDs := []int{2, 3, 1}
	if len(tracks) != len(expectedIDs) {
		t.Fatalf("Expected %d tracks, got %d", len(expectedIDs), len(tracks))
	}
	for i, id := range expectedIDs {
		if tracks[i].ID != id {
			t.Errorf("Position %d: expected ID %d, got %d", i, id, tracks[i].ID)
		}
	}

	seen := make(map[int]struct{})
	for step := 0; step < 30; step++ {
		now = now.Add(time.Second)
		tracks, _ = cycle(store, now, mapped(float64(step*1000), 0, 10, 10))
		for _, track := range tracks {
			if track.LastSeen.Equal(now) {
				if _, ok := seen[track.ID]; ok {
					t.Fatalf("ID %d has been reused", track.ID)
				}
				seen[track.ID] = struct{}{}
			}
		}
	}
}
