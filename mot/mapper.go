package mot

import "math"

// DefaultMaxDim is the longest side of the frame sent to recognition service
const DefaultMaxDim = 224.0

// Geometry describes sizes needed to bring detections back to the screen.
type Geometry struct {
	// Natural size of the video source
	NaturalWidth  float64
	NaturalHeight float64
	// Size of the area the video is drawn into (object-fit: cover)
	ViewportWidth  float64
	ViewportHeight float64
	// Longest side of the transmitted frame. Zero means DefaultMaxDim
	MaxDim float64
}

func (g Geometry) maxDim() float64 {
	if g.MaxDim == 0 {
		return DefaultMaxDim
	}
	return g.MaxDim
}

// SentSize returns dimensions of the downscaled frame which has been actually transmitted
func (g Geometry) SentSize() (float64, float64) {
	downscale := minFloat64(g.maxDim()/g.NaturalWidth, g.maxDim()/g.NaturalHeight)
	return math.Round(g.NaturalWidth * downscale), math.Round(g.NaturalHeight * downscale)
}

func (g Geometry) degenerate() bool {
	return g.NaturalWidth <= 0 || g.NaturalHeight <= 0 || g.ViewportWidth <= 0 || g.ViewportHeight <= 0 || g.maxDim() <= 0
}

// MapPosition converts bbox [x1, y1, x2, y2] given in transmitted frame pixels into viewport pixels
// for a video scaled to cover the viewport, centered and cropped.
// Returns false when geometry is degenerate.
func MapPosition(bbox [4]float64, g Geometry) (Position, bool) {
	if g.degenerate() {
		return Position{}, false
	}
	sentWidth, sentHeight := g.SentSize()
	if sentWidth == 0 || sentHeight == 0 {
		return Position{}, false
	}

	displayScale := maxFloat64(g.ViewportWidth/g.NaturalWidth, g.ViewportHeight/g.NaturalHeight)
	scaledWidth := g.NaturalWidth * displayScale
	scaledHeight := g.NaturalHeight * displayScale
	xOffset := (g.ViewportWidth - scaledWidth) / 2.0
	yOffset := (g.ViewportHeight - scaledHeight) / 2.0

	nX1 := bbox[0] / sentWidth
	nY1 := bbox[1] / sentHeight
	nX2 := bbox[2] / sentWidth
	nY2 := bbox[3] / sentHeight

	return Position{
		Left:   nX1*scaledWidth + xOffset,
		Top:    nY1*scaledHeight + yOffset,
		Width:  (nX2 - nX1) * scaledWidth,
		Height: (nY2 - nY1) * scaledHeight,
	}, true
}

// MapDetections maps every detection and silently drops ones which could not be placed
func MapDetections(raw []RawDetection, g Geometry) []MappedDetection {
	mapped := make([]MappedDetection, 0, len(raw))
	for _, detection := range raw {
		if !detection.HasBBox {
			continue
		}
		pos, ok := MapPosition(detection.BBox, g)
		if !ok {
			continue
		}
		mapped = append(mapped, MappedDetection{
			RawDetection: detection,
			Position:     pos,
		})
	}
	return mapped
}
