package mot

import (
	"math"
	"testing"
)

func TestMapPositionReference(t *testing.T) {
	geometry := Geometry{
		NaturalWidth:   1920,
		NaturalHeight:  1080,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		MaxDim:         224,
	}
	sentWidth, sentHeight := geometry.SentSize()
	if sentWidth != 224 || sentHeight != 126 {
		t.Fatalf("Expected sent size 224x126, got %vx%v", sentWidth, sentHeight)
	}

	pos, ok := MapPosition([4]float64{50, 50, 150, 150}, geometry)
	if !ok {
		t.Fatal("Mapping should succeed")
	}
	// 50/224*1280 and 50/126*720
	expected := Position{
		Left:   285.7142857142857,
		Top:    285.7142857142857,
		Width:  571.4285714285714,
		Height: 571.4285714285714,
	}
	if !positionsClose(pos, expected, eps) {
		t.Errorf("Expected %+v, got %+v", expected, pos)
	}

	// Pure function: identical input gives bit-identical output
	for i := 0; i < 100; i++ {
		again, _ := MapPosition([4]float64{50, 50, 150, 150}, geometry)
		if again != pos {
			t.Fatalf("Mapping is not deterministic: %+v != %+v", again, pos)
		}
	}
}

func TestMapPositionCoverCrop(t *testing.T) {
	// Square viewport crops left and right parts of wide video
	geometry := Geometry{
		NaturalWidth:   1920,
		NaturalHeight:  1080,
		ViewportWidth:  1000,
		ViewportHeight: 1000,
	}
	pos, ok := MapPosition([4]float64{0, 0, 224, 126}, geometry)
	if !ok {
		t.Fatal("Mapping should succeed")
	}
	scaledWidth := 1920.0 * 1000.0 / 1080.0
	expectedLeft := (1000.0 - scaledWidth) / 2.0
	if math.Abs(pos.Left-expectedLeft) > eps {
		t.Errorf("Expected left %f, got %f", expectedLeft, pos.Left)
	}
	if math.Abs(pos.Top) > eps {
		t.Errorf("Expected top 0, got %f", pos.Top)
	}
	if math.Abs(pos.Width-scaledWidth) > eps {
		t.Errorf("Expected width %f, got %f", scaledWidth, pos.Width)
	}
	if math.Abs(pos.Height-1000) > eps {
		t.Errorf("Expected height 1000, got %f", pos.Height)
	}
}

func TestMapPositionDegenerate(t *testing.T) {
	bbox := [4]float64{10, 10, 20, 20}
	cases := []Geometry{
		{NaturalWidth: 0, NaturalHeight: 1080, ViewportWidth: 1280, ViewportHeight: 720},
		{NaturalWidth: 1920, NaturalHeight: 0, ViewportWidth: 1280, ViewportHeight: 720},
		{NaturalWidth: 1920, NaturalHeight: 1080, ViewportWidth: 0, ViewportHeight: 720},
		{NaturalWidth: 1920, NaturalHeight: 1080, ViewportWidth: 1280, ViewportHeight: 0},
		{NaturalWidth: 1920, NaturalHeight: 1080, ViewportWidth: 1280, ViewportHeight: 720, MaxDim: -1},
		// Sent height rounds down to zero
		{NaturalWidth: 100000, NaturalHeight: 1, ViewportWidth: 1280, ViewportHeight: 720},
	}
	for i, geometry := range cases {
		if _, ok := MapPosition(bbox, geometry); ok {
			t.Errorf("Case %d: expected absence for geometry %+v", i, geometry)
		}
	}
}

func TestMapDetectionsDropsAbsent(t *testing.T) {
	geometry := Geometry{NaturalWidth: 224, NaturalHeight: 224, ViewportWidth: 224, ViewportHeight: 224}
	raw := []RawDetection{
		NewRawDetection(0, 0, 10, 10, "Alice"),
		{Identity: "NoBox"},
		NewRawDetection(20, 20, 40, 40, UnknownIdentity),
	}
	mapped := MapDetections(raw, geometry)
	if len(mapped) != 2 {
		t.Fatalf("Expected 2 mapped detections, got %d", len(mapped))
	}
	if mapped[0].Identity != "Alice" || mapped[1].Identity != UnknownIdentity {
		t.Errorf("Unexpected identities: %q, %q", mapped[0].Identity, mapped[1].Identity)
	}
	// Identity geometry keeps coordinates as is
	if !positionsClose(mapped[1].Position, NewPosition(20, 20, 20, 20), eps) {
		t.Errorf("Expected identity mapping, got %+v", mapped[1].Position)
	}

	if got := MapDetections(raw, Geometry{}); len(got) != 0 {
		t.Errorf("Expected nothing for degenerate geometry, got %d", len(got))
	}
}

func positionsClose(a, b Position, tolerance float64) bool {
	return math.Abs(a.Left-b.Left) <= tolerance && math.Abs(a.Top-b.Top) <= tolerance &&
		math.Abs(a.Width-b.Width) <= tolerance && math.Abs(a.Height-b.Height) <= tolerance
}
