package mot

import (
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestEuclideanDistance(t *testing.T) {
	p1 := Point{X: 341, Y: 264}
	p2 := Point{X: 421, Y: 427}
	correnctAnswer := 181.57367
	answer := euclideanDistance(p1, p2)
	if math.Abs(answer-correnctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correnctAnswer)
	}
}

func TestPositionCenterArea(t *testing.T) {
	pos := NewPosition(10, 20, 30, 40)
	expectedCenter := Point{X: 25, Y: 40}
	if pos.Center() != expectedCenter {
		t.Errorf("Expected center %v, got %v", expectedCenter, pos.Center())
	}
	if pos.Area() != 1200 {
		t.Errorf("Expected area 1200, got %f", pos.Area())
	}
	flipped := NewPosition(0, 0, -5, 10)
	if flipped.Area() != 0 {
		t.Errorf("Expected empty area for negative width, got %f", flipped.Area())
	}
}

func TestBlend(t *testing.T) {
	a := NewPosition(0, 0, 10, 10)
	b := NewPosition(10, 20, 20, 30)
	got := blend(a, b, 0.5)
	expected := NewPosition(5, 10, 15, 20)
	if got != expected {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}
