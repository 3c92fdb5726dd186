package mot

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// blend returns a*(1-k) + b*k for every component
func blend(a, b Position, k float64) Position {
	return a.Scale(1 - k).Add(b.Scale(k))
}
