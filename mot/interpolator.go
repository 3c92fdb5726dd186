package mot

import (
	"context"
	"time"

	"github.com/LdDl/overlay-mot/internal/timeutil"
)

const (
	// DefaultInterpolationPeriod is period of interpolation clock (~120 FPS)
	DefaultInterpolationPeriod = 8 * time.Millisecond
	// DefaultInterpolationFactor is share of smoothed velocity applied on each tick
	DefaultInterpolationFactor = 0.15
)

// Interpolator advances displayed positions on its own fixed-rate clock,
// independently of network cadence.
type Interpolator struct {
	engine *Engine
	clock  timeutil.Clock
	period time.Duration
}

// NewInterpolator creates interpolator ticking every period. Zero period means DefaultInterpolationPeriod
func NewInterpolator(engine *Engine, clock timeutil.Clock, period time.Duration) *Interpolator {
	if period <= 0 {
		period = DefaultInterpolationPeriod
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Interpolator{
		engine: engine,
		clock:  clock,
		period: period,
	}
}

// Run blocks until ctx is done. The ticker is stopped before return.
func (interp *Interpolator) Run(ctx context.Context) {
	ticker := interp.clock.NewTicker(interp.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			interp.engine.Interpolate()
		}
	}
}
