package mot

import (
	"math"
)

// Position is a rectangle in viewport pixels
type Position struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func NewPosition(left, top, width, height float64) Position {
	return Position{
		Left:   left,
		Top:    top,
		Width:  width,
		Height: height,
	}
}

// Center returns geometric center of the rectangle
func (p Position) Center() Point {
	return Point{
		X: p.Left + p.Width/2.0,
		Y: p.Top + p.Height/2.0,
	}
}

// Area returns area of the rectangle. Negative sizes are treated as empty.
func (p Position) Area() float64 {
	return maxFloat64(0, p.Width) * maxFloat64(0, p.Height)
}

// Add returns component-wise sum
func (p Position) Add(other Position) Position {
	return Position{
		Left:   p.Left + other.Left,
		Top:    p.Top + other.Top,
		Width:  p.Width + other.Width,
		Height: p.Height + other.Height,
	}
}

// Sub returns component-wise difference
func (p Position) Sub(other Position) Position {
	return Position{
		Left:   p.Left - other.Left,
		Top:    p.Top - other.Top,
		Width:  p.Width - other.Width,
		Height: p.Height - other.Height,
	}
}

// Scale multiplies every component by k
func (p Position) Scale(k float64) Position {
	return Position{
		Left:   p.Left * k,
		Top:    p.Top * k,
		Width:  p.Width * k,
		Height: p.Height * k,
	}
}

type Point struct {
	X float64
	Y float64
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(float64(p1.X-p2.X), 2) + math.Pow(float64(p1.Y-p2.Y), 2))
}
