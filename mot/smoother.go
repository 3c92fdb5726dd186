package mot

import "sort"

const (
	// DefaultVelocitySmoothing is weight of the newest velocity sample (alpha)
	DefaultVelocitySmoothing = 0.6
	// DefaultPositionSmoothing is weight of the newest raw position (beta)
	DefaultPositionSmoothing = 0.6
	// DefaultPredictionFactor is how much of smoothed velocity is added on top (gamma)
	DefaultPredictionFactor = 0.2
)

// Smoother turns raw per-cycle track rectangles into display rectangles.
// State is keyed by track ID and must be purged when track is evicted.
type Smoother interface {
	// Smooth consumes new raw rectangle of the track and returns rectangle to display
	Smooth(trackID int, raw Position) Position
	// Velocity returns smoothed rectangle delta per cycle
	Velocity(trackID int) (Position, bool)
	// Purge drops state of given tracks
	Purge(trackIDs ...int)
	// IDs returns tracks which have state, sorted
	IDs() []int
}

type emaState struct {
	// Last returned rectangle
	displayed Position
	velocity  Position
}

// EMASmoother blends history with new observations and extrapolates along smoothed velocity
// to compensate round trip latency.
//
//	rawVelocity      = raw - displayed
//	smoothedVelocity = smoothedVelocity*(1-alpha) + rawVelocity*alpha
//	displayed        = displayed*(1-beta) + raw*beta + smoothedVelocity*gamma
type EMASmoother struct {
	alpha  float64
	beta   float64
	gamma  float64
	states map[int]*emaState
}

// NewEMASmootherDefault creates smoother with default coefficients (0.6, 0.6, 0.2)
func NewEMASmootherDefault() *EMASmoother {
	return NewEMASmootherWithParams(DefaultVelocitySmoothing, DefaultPositionSmoothing, DefaultPredictionFactor)
}

// NewEMASmootherWithParams creates smoother with custom coefficients
func NewEMASmootherWithParams(alpha, beta, gamma float64) *EMASmoother {
	return &EMASmoother{
		alpha:  alpha,
		beta:   beta,
		gamma:  gamma,
		states: make(map[int]*emaState),
	}
}

// Smooth implements Smoother. First observation is returned as is with zero velocity.
func (s *EMASmoother) Smooth(trackID int, raw Position) Position {
	state, ok := s.states[trackID]
	if !ok {
		s.states[trackID] = &emaState{
			displayed: raw,
		}
		return raw
	}
	rawVelocity := raw.Sub(state.displayed)
	state.velocity = blend(state.velocity, rawVelocity, s.alpha)
	state.displayed = blend(state.displayed, raw, s.beta).Add(state.velocity.Scale(s.gamma))
	return state.displayed
}

// Velocity implements Smoother
func (s *EMASmoother) Velocity(trackID int) (Position, bool) {
	state, ok := s.states[trackID]
	if !ok {
		return Position{}, false
	}
	return state.velocity, true
}

// Purge implements Smoother
func (s *EMASmoother) Purge(trackIDs ...int) {
	for _, id := range trackIDs {
		delete(s.states, id)
	}
}

// IDs implements Smoother
func (s *EMASmoother) IDs() []int {
	return sortedKeys(s.states)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
