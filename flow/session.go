package flow

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Runner is a loop which blocks until ctx is done (e.g. mot.Interpolator)
type Runner interface {
	Run(ctx context.Context)
}

// Session runs interpolation clock and request loop of a single recognition session.
// Capture resources are released only after both loops and the channel are stopped.
type Session struct {
	controller   *Controller
	interpolator Runner
}

// NewSession creates new instance of Session. Interpolator may be nil
func NewSession(controller *Controller, interpolator Runner) *Session {
	return &Session{
		controller:   controller,
		interpolator: interpolator,
	}
}

// Run blocks until ctx is done
func (s *Session) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if s.interpolator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.interpolator.Run(ctx)
		}()
	}
	err := s.controller.Run(ctx)
	wg.Wait()

	if closer, ok := s.controller.capturer.(io.Closer); ok {
		if closeErr := closer.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "can't release capturer")
		}
	}
	return err
}
