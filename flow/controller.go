// Package flow paces frame submission to recognition service: one request in flight at most,
// next capture synced to display refresh, automatic reconnection.
package flow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/LdDl/overlay-mot/internal/timeutil"
	"github.com/LdDl/overlay-mot/mot"
	"github.com/LdDl/overlay-mot/transport"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultRefreshPeriod is a single display refresh at 60Hz
	DefaultRefreshPeriod = time.Second / 60
	// DefaultReconnectBackoff is fixed delay before redialing
	DefaultReconnectBackoff = time.Second
	// DefaultResponseTimeout is how long controller waits for response before treating channel as broken
	DefaultResponseTimeout = 2 * time.Second
	// DefaultCaptureRetryDelay is delay before next capture attempt when frame is not available
	DefaultCaptureRetryDelay = 100 * time.Millisecond
)

var (
	// ErrResponseTimeout is returned (as cause) when response did not arrive in time
	ErrResponseTimeout = errors.New("response timeout")
	// ErrEmptyFrame is returned by capturers when frame is not ready yet
	ErrEmptyFrame = errors.New("empty frame")
)

// State is a state of controller
type State int32

const (
	// StateIdle means no request is outstanding
	StateIdle State = iota
	// StateSending means frame is being written
	StateSending
	// StateAwaiting means frame is sent and response is awaited
	StateAwaiting
	// StateReconnecting means channel is broken and controller waits before redialing
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateAwaiting:
		return "awaiting"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Frame is a captured and encoded video frame
type Frame struct {
	Payload []byte
	// Geometry frame has been captured with. Detections of the response are mapped using it
	Geometry mot.Geometry
}

// Capturer grabs current video frame downscaled to Geometry.SentSize
type Capturer interface {
	Capture(ctx context.Context) (Frame, error)
}

// CapturerFunc is an adapter to allow ordinary functions to be used as Capturer
type CapturerFunc func(ctx context.Context) (Frame, error)

// Capture implements Capturer
func (f CapturerFunc) Capture(ctx context.Context) (Frame, error) {
	return f(ctx)
}

// Handler consumes responses. Malformed responses are delivered as empty detections list
type Handler interface {
	HandleResponse(geometry mot.Geometry, detections []mot.RawDetection)
}

// HandlerFunc is an adapter to allow ordinary functions to be used as Handler
type HandlerFunc func(geometry mot.Geometry, detections []mot.RawDetection)

// HandleResponse implements Handler
func (f HandlerFunc) HandleResponse(geometry mot.Geometry, detections []mot.RawDetection) {
	f(geometry, detections)
}

// EngineHandler feeds responses into engine
func EngineHandler(engine *mot.Engine) Handler {
	return HandlerFunc(func(geometry mot.Geometry, detections []mot.RawDetection) {
		engine.Process(geometry, detections)
	})
}

// Controller is a request/response pacing state machine
type Controller struct {
	dialer   transport.Dialer
	capturer Capturer
	handler  Handler

	clock             timeutil.Clock
	logger            zerolog.Logger
	refreshPeriod     time.Duration
	reconnectBackoff  time.Duration
	responseTimeout   time.Duration
	captureRetryDelay time.Duration

	state    atomic.Int32
	inFlight atomic.Int32
	sent     atomic.Uint64
	received atomic.Uint64
}

// Option configures Controller
type Option func(*Controller)

// WithClock sets time source for tickers and timers
func WithClock(clock timeutil.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRefreshPeriod sets display refresh period which next capture is synced to
func WithRefreshPeriod(period time.Duration) Option {
	return func(c *Controller) {
		c.refreshPeriod = period
	}
}

// WithReconnectBackoff sets delay before redialing
func WithReconnectBackoff(backoff time.Duration) Option {
	return func(c *Controller) {
		c.reconnectBackoff = backoff
	}
}

// WithResponseTimeout sets response watchdog
func WithResponseTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		c.responseTimeout = timeout
	}
}

// WithCaptureRetryDelay sets delay between failed capture attempts
func WithCaptureRetryDelay(delay time.Duration) Option {
	return func(c *Controller) {
		c.captureRetryDelay = delay
	}
}

// NewController creates new instance of Controller
func NewController(dialer transport.Dialer, capturer Capturer, handler Handler, opts ...Option) *Controller {
	c := &Controller{
		dialer:            dialer,
		capturer:          capturer,
		handler:           handler,
		clock:             timeutil.RealClock{},
		logger:            zerolog.Nop(),
		refreshPeriod:     DefaultRefreshPeriod,
		reconnectBackoff:  DefaultReconnectBackoff,
		responseTimeout:   DefaultResponseTimeout,
		captureRetryDelay: DefaultCaptureRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.refreshPeriod <= 0 {
		c.refreshPeriod = DefaultRefreshPeriod
	}
	return c
}

// State returns current state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// InFlight returns number of outstanding requests: 0 or 1
func (c *Controller) InFlight() int {
	return int(c.inFlight.Load())
}

// Stats returns number of sent frames and received responses
func (c *Controller) Stats() (sent, received uint64) {
	return c.sent.Load(), c.received.Load()
}

func (c *Controller) setState(state State) {
	c.state.Store(int32(state))
}

// Run drives the loop until ctx is cancelled. Transport failures never stop it: controller
// waits for reconnect backoff and dials again. Returns nil on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	refresh := c.clock.NewTicker(c.refreshPeriod)
	defer refresh.Stop()
	defer c.setState(StateIdle)

	for ctx.Err() == nil {
		conn, err := c.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Warn().Err(err).Dur("backoff", c.reconnectBackoff).Msg("can't connect to recognition service")
			if !c.backoff(ctx) {
				break
			}
			continue
		}
		c.logger.Info().Msg("connected to recognition service")
		err = c.serve(ctx, conn, refresh)
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn().Err(err).Dur("backoff", c.reconnectBackoff).Msg("channel is broken")
		if !c.backoff(ctx) {
			break
		}
	}
	return nil
}

func (c *Controller) backoff(ctx context.Context) bool {
	c.setState(StateReconnecting)
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(c.reconnectBackoff):
		return true
	}
}

type readResult struct {
	msg transport.Message
	err error
}

// serve runs request/response cycles over a single channel until it breaks. Channel is closed on return
func (c *Controller) serve(ctx context.Context, conn transport.Conn, refresh timeutil.Ticker) error {
	incoming := make(chan readResult)
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			msg, err := conn.ReadMessage()
			select {
			case incoming <- readResult{msg: msg, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	defer func() {
		close(stop)
		if err := conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("closing channel")
		}
		<-readerDone
	}()

	c.setState(StateIdle)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-incoming:
			if err := c.handleIdleMessage(ctx, conn, res); err != nil {
				return err
			}
			continue
		case <-refresh.C():
		}

		frame, err := c.capturer.Capture(ctx)
		if err == nil && len(frame.Payload) == 0 {
			err = ErrEmptyFrame
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug().Err(err).Dur("retry", c.captureRetryDelay).Msg("frame is not available")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(c.captureRetryDelay):
			}
			continue
		}

		if err := c.request(ctx, conn, incoming, frame); err != nil {
			return err
		}
		c.setState(StateIdle)
		// next capture waits for a refresh signal raised after the response, not during it
		drainTicker(refresh)
	}
}

func drainTicker(ticker timeutil.Ticker) {
	select {
	case <-ticker.C():
	default:
	}
}

// handleIdleMessage deals with messages received while no request is outstanding
func (c *Controller) handleIdleMessage(ctx context.Context, conn transport.Conn, res readResult) error {
	if res.err != nil {
		return errors.Wrap(res.err, "read")
	}
	if res.msg.Kind == transport.KindControl {
		return c.answerControl(ctx, conn, res.msg)
	}
	c.logger.Warn().Str("kind", res.msg.Kind.String()).Msg("unsolicited response dropped")
	return nil
}

func (c *Controller) answerControl(ctx context.Context, conn transport.Conn, msg transport.Message) error {
	if !msg.IsPing() {
		c.logger.Debug().Str("control", msg.Control).Msg("control message ignored")
		return nil
	}
	if err := conn.WriteControl(ctx, transport.Pong()); err != nil {
		return errors.Wrap(err, "pong")
	}
	return nil
}

// request sends frame and blocks until its response is handled
func (c *Controller) request(ctx context.Context, conn transport.Conn, incoming <-chan readResult, frame Frame) error {
	requestID := uuid.New()
	logger := c.logger.With().Str("request_id", requestID.String()).Logger()

	c.setState(StateSending)
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	sentAt := c.clock.Now()
	if err := conn.WriteFrame(ctx, frame.Payload); err != nil {
		return errors.Wrapf(err, "request %s", requestID)
	}
	c.sent.Add(1)
	c.setState(StateAwaiting)
	logger.Debug().Int("bytes", len(frame.Payload)).Msg("frame sent")

	watchdog := c.clock.After(c.responseTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-watchdog:
			return errors.Wrapf(ErrResponseTimeout, "request %s after %s", requestID, c.responseTimeout)
		case res := <-incoming:
			if res.err != nil {
				return errors.Wrapf(res.err, "request %s", requestID)
			}
			switch res.msg.Kind {
			case transport.KindControl:
				if err := c.answerControl(ctx, conn, res.msg); err != nil {
					return errors.Wrapf(err, "request %s", requestID)
				}
				continue
			case transport.KindMalformed:
				logger.Error().Err(res.msg.Err).Msg("malformed response, treated as no detections")
				c.handler.HandleResponse(frame.Geometry, nil)
			default:
				c.handler.HandleResponse(frame.Geometry, res.msg.Detections)
			}
			c.received.Add(1)
			logger.Debug().
				Int("detections", len(res.msg.Detections)).
				Dur("latency", c.clock.Now().Sub(sentAt)).
				Msg("response handled")
			return nil
		}
	}
}
