package mot

import (
	"sync"
	"time"

	"github.com/LdDl/overlay-mot/internal/timeutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Renderer receives every published list of tracked detections.
// It is called while engine is locked, so it must not call back into Engine.
type Renderer interface {
	Render(tracked []TrackedDetection)
}

// RendererFunc is an adapter to allow ordinary functions to be used as Renderer
type RendererFunc func(tracked []TrackedDetection)

// Render implements Renderer
func (f RendererFunc) Render(tracked []TrackedDetection) {
	f(tracked)
}

// Engine runs detection cycles (map, associate, update store, smooth) and owns display cache.
// Two producers write displayed positions: Process (real update, always wins) and
// Interpolate (advances displayed positions between updates). Both take the same lock
// and replace whole rectangles, so readers never see half-updated state.
type Engine struct {
	mu sync.Mutex

	store    *TrackStore
	smoother Smoother
	// Last displayed position per track ID
	display map[int]Position
	// Last published list. Positions are taken from display on read
	published []TrackedDetection

	gateFraction        float64
	interpolationFactor float64

	clock     timeutil.Clock
	renderer  Renderer
	logger    zerolog.Logger
	sessionID uuid.UUID
}

// EngineOption configures Engine
type EngineOption func(*Engine)

// WithGraceWindow sets ghost lifetime of unmatched tracks. Default is 500ms
func WithGraceWindow(graceWindow time.Duration) EngineOption {
	return func(engine *Engine) {
		engine.store = NewTrackStore(graceWindow)
	}
}

// WithGateFraction sets association gate as a share of viewport width. Default is 0.25
func WithGateFraction(fraction float64) EngineOption {
	return func(engine *Engine) {
		engine.gateFraction = fraction
	}
}

// WithSmoother replaces default EMASmoother
func WithSmoother(smoother Smoother) EngineOption {
	return func(engine *Engine) {
		engine.smoother = smoother
	}
}

// WithInterpolationFactor sets share of velocity added on every interpolation tick. Default is 0.15
func WithInterpolationFactor(factor float64) EngineOption {
	return func(engine *Engine) {
		engine.interpolationFactor = factor
	}
}

// WithClock sets time source for lastSeen timestamps
func WithClock(clock timeutil.Clock) EngineOption {
	return func(engine *Engine) {
		engine.clock = clock
	}
}

// WithRenderer sets consumer of published detections
func WithRenderer(renderer Renderer) EngineOption {
	return func(engine *Engine) {
		engine.renderer = renderer
	}
}

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

// NewEngine creates engine for a single session
func NewEngine(opts ...EngineOption) *Engine {
	engine := &Engine{
		store:               NewTrackStoreDefault(),
		smoother:            NewEMASmootherDefault(),
		display:             make(map[int]Position),
		published:           make([]TrackedDetection, 0),
		gateFraction:        DefaultGateFraction,
		interpolationFactor: DefaultInterpolationFactor,
		clock:               timeutil.RealClock{},
		logger:              zerolog.Nop(),
		sessionID:           uuid.New(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	engine.logger = engine.logger.With().Str("session_id", engine.sessionID.String()).Logger()
	return engine
}

// SessionID returns identifier of the session engine belongs to
func (engine *Engine) SessionID() uuid.UUID {
	return engine.sessionID
}

// Process runs a full detection cycle atomically and returns tracked detections with display positions
func (engine *Engine) Process(geometry Geometry, raw []RawDetection) []TrackedDetection {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	now := engine.clock.Now()
	mapped := MapDetections(raw, geometry)
	if dropped := len(raw) - len(mapped); dropped > 0 {
		engine.logger.Debug().Int("dropped", dropped).Msg("detections without position")
	}

	evicted := engine.store.Expire(now)
	gate := engine.gateFraction * geometry.ViewportWidth
	assoc := Associate(mapped, engine.store.Tracks(), gate)
	tracks, unclaimed := engine.store.Update(now, mapped, assoc)
	engine.purge(append(evicted, unclaimed...))
	if len(assoc.UnmatchedDetections) > 0 {
		engine.logger.Debug().Int("count", len(assoc.UnmatchedDetections)).Msg("tracks created")
	}

	published := make([]TrackedDetection, 0, len(tracks))
	for _, track := range tracks {
		displayed := engine.smoother.Smooth(track.ID, track.Rect)
		engine.display[track.ID] = displayed
		tracked := track.Tracked()
		tracked.Position = displayed
		published = append(published, tracked)
	}
	engine.published = published

	snapshot := engine.snapshot()
	if engine.renderer != nil {
		engine.renderer.Render(snapshot)
	}
	return snapshot
}

// Interpolate advances displayed position of every published track along its smoothed velocity.
// It never creates, matches or evicts tracks.
func (engine *Engine) Interpolate() []TrackedDetection {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	// No real updates arrive while channel is down: ghosts must still go away on time
	if engine.expire(engine.clock.Now()) == 0 && len(engine.published) == 0 {
		return nil
	}
	for _, tracked := range engine.published {
		displayed, ok := engine.display[tracked.TrackID]
		if !ok {
			continue
		}
		velocity, ok := engine.smoother.Velocity(tracked.TrackID)
		if !ok {
			continue
		}
		engine.display[tracked.TrackID] = displayed.Add(velocity.Scale(engine.interpolationFactor))
	}

	snapshot := engine.snapshot()
	if engine.renderer != nil {
		engine.renderer.Render(snapshot)
	}
	return snapshot
}

// Snapshot returns last published detections with current displayed positions.
// Tracks whose grace window has elapsed are dropped.
func (engine *Engine) Snapshot() []TrackedDetection {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	engine.expire(engine.clock.Now())
	return engine.snapshot()
}

// Tracks returns copy of tracks currently held by store (including ghosts)
func (engine *Engine) Tracks() []Track {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.store.Tracks()
}

// snapshot must be called with engine.mu held
func (engine *Engine) snapshot() []TrackedDetection {
	snapshot := make([]TrackedDetection, len(engine.published))
	for i, tracked := range engine.published {
		if displayed, ok := engine.display[tracked.TrackID]; ok {
			tracked.Position = displayed
		}
		snapshot[i] = tracked
	}
	return snapshot
}

// expire evicts stale tracks and removes them from published list.
// Returns number of removed published entries. Must be called with engine.mu held
func (engine *Engine) expire(now time.Time) int {
	evicted := engine.store.Expire(now)
	if len(evicted) == 0 {
		return 0
	}
	engine.purge(evicted)
	gone := make(map[int]struct{}, len(evicted))
	for _, id := range evicted {
		gone[id] = struct{}{}
	}
	kept := make([]TrackedDetection, 0, len(engine.published))
	for _, tracked := range engine.published {
		if _, ok := gone[tracked.TrackID]; ok {
			continue
		}
		kept = append(kept, tracked)
	}
	removed := len(engine.published) - len(kept)
	engine.published = kept
	return removed
}

// purge drops smoother and display state of evicted tracks. Must be called with engine.mu held
func (engine *Engine) purge(evicted []int) {
	if len(evicted) == 0 {
		return
	}
	engine.smoother.Purge(evicted...)
	for _, id := range evicted {
		delete(engine.display, id)
	}
	engine.logger.Debug().Ints("track_ids", evicted).Msg("tracks evicted")
}
