package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// kalmanState is per-track 8-D Kalman filter.
// State vector: [cx, cy, w, h, vx, vy, vw, vh] - center position, size, and velocities.
type kalmanState struct {
	tracker   *kalman_filter.KalmanBBox
	displayed Position
}

// KalmanSmoother is an alternative to EMASmoother: every track gets its own
// constant-velocity Kalman filter over the full bounding box.
type KalmanSmoother struct {
	dt     float64
	states map[int]*kalmanState
	// Last filter error. Filter is reinitialized from measurement when update fails
	lastErr error
}

// NewKalmanSmoother creates smoother with time step of 1.0 (one detection cycle)
func NewKalmanSmoother() *KalmanSmoother {
	return NewKalmanSmootherWithTime(1.0)
}

// NewKalmanSmootherWithTime creates smoother with specified time step
func NewKalmanSmootherWithTime(dt float64) *KalmanSmoother {
	return &KalmanSmoother{
		dt:     dt,
		states: make(map[int]*kalmanState),
	}
}

func (s *KalmanSmoother) newFilter(raw Position) *kalman_filter.KalmanBBox {
	center := raw.Center()

	// Kalman filter props
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	return kalman_filter.NewKalmanBBox(
		s.dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, raw.Width, raw.Height),
	)
}

// Smooth implements Smoother: executes prediction step and then corrects it with measurement
func (s *KalmanSmoother) Smooth(trackID int, raw Position) Position {
	state, ok := s.states[trackID]
	if !ok {
		s.states[trackID] = &kalmanState{
			tracker:   s.newFilter(raw),
			displayed: raw,
		}
		return raw
	}

	center := raw.Center()
	state.tracker.Predict()
	err := state.tracker.Update(center.X, center.Y, raw.Width, raw.Height)
	if err != nil {
		s.lastErr = errors.Wrapf(err, "Can't update Kalman filter of track %d", trackID)
		state.tracker = s.newFilter(raw)
		state.displayed = raw
		return raw
	}

	cx, cy, w, h := state.tracker.GetState()
	state.displayed = Position{
		Left:   cx - w/2.0,
		Top:    cy - h/2.0,
		Width:  w,
		Height: h,
	}
	return state.displayed
}

// Velocity implements Smoother. Center velocity is converted into left/top velocity.
func (s *KalmanSmoother) Velocity(trackID int) (Position, bool) {
	state, ok := s.states[trackID]
	if !ok {
		return Position{}, false
	}
	vx, vy, vw, vh := state.tracker.GetVelocity()
	return Position{
		Left:   vx - vw/2.0,
		Top:    vy - vh/2.0,
		Width:  vw,
		Height: vh,
	}, true
}

// Purge implements Smoother
func (s *KalmanSmoother) Purge(trackIDs ...int) {
	for _, id := range trackIDs {
		delete(s.states, id)
	}
}

// IDs implements Smoother
func (s *KalmanSmoother) IDs() []int {
	return sortedKeys(s.states)
}

// Err returns last filter error if any. Smoothing never stops because of it.
func (s *KalmanSmoother) Err() error {
	return s.lastErr
}
