package mot

import (
	"math"
)

// DefaultGateFraction is the default share of viewport width used as association gate
const DefaultGateFraction = 0.25

// Match pairs index of detection with index of track
type Match struct {
	Detection int
	Track     int
}

// Association is result of matching single cycle of detections against tracks
type Association struct {
	Matches []Match
	// Indices of detections which should spawn new tracks, in input order
	UnmatchedDetections []int
}

// TrackIndex returns index of the track claimed by given detection or -1
func (a Association) TrackIndex(detection int) int {
	for _, m := range a.Matches {
		if m.Detection == detection {
			return m.Track
		}
	}
	return -1
}

// Associate greedily matches detections to tracks by centroid distance.
// Detections with bigger area go first: they dominate visually and move more per cycle.
// Each detection takes the nearest unclaimed track if the distance is below gate.
// Claimed tracks are not reconsidered (no backtracking), so result is not globally optimal.
func Associate(detections []MappedDetection, tracks []Track, gate float64) Association {
	claimedTracks := make([]bool, len(tracks))
	detectionTrack := make([]int, len(detections))
	for i := range detectionTrack {
		detectionTrack[i] = -1
	}

	trackCenters := make([]Point, len(tracks))
	for i := range tracks {
		trackCenters[i] = tracks[i].Rect.Center()
	}

	for _, detIdx := range areaOrder(detections) {
		center := detections[detIdx].Position.Center()
		minIdx := -1
		minDistance := math.MaxFloat64
		for trackIdx := range tracks {
			if claimedTracks[trackIdx] {
				continue
			}
			dist := euclideanDistance(center, trackCenters[trackIdx])
			if dist < gate && dist < minDistance {
				minDistance = dist
				minIdx = trackIdx
			}
		}
		if minIdx != -1 {
			detectionTrack[detIdx] = minIdx
			claimedTracks[minIdx] = true
		}
	}

	assoc := Association{
		Matches:             make([]Match, 0, len(detections)),
		UnmatchedDetections: make([]int, 0),
	}
	for detIdx, trackIdx := range detectionTrack {
		if trackIdx == -1 {
			assoc.UnmatchedDetections = append(assoc.UnmatchedDetections, detIdx)
			continue
		}
		assoc.Matches = append(assoc.Matches, Match{Detection: detIdx, Track: trackIdx})
	}
	return assoc
}
