// Package config loads tracker settings from a JSON file.
// Every field is optional: Get* accessors fall back to built-in defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/LdDl/overlay-mot/flow"
	"github.com/LdDl/overlay-mot/mot"
	"github.com/pkg/errors"
)

const (
	// SmootherEMA selects exponential moving average smoother
	SmootherEMA = "ema"
	// SmootherKalman selects Kalman filter smoother
	SmootherKalman = "kalman"
)

const maxFileSize = 1 * 1024 * 1024

// Config is a root configuration
type Config struct {
	// Recognition service
	Endpoint *string `json:"endpoint,omitempty"`

	// Geometry
	MaxDim         *float64 `json:"max_dim,omitempty"`
	ViewportWidth  *float64 `json:"viewport_width,omitempty"`
	ViewportHeight *float64 `json:"viewport_height,omitempty"`

	// Association and track lifetime
	GateFraction *float64 `json:"gate_fraction,omitempty"`
	GraceWindow  *string  `json:"grace_window,omitempty"` // duration string like "500ms"

	// Smoothing
	Smoother          *string  `json:"smoother,omitempty"` // "ema" or "kalman"
	VelocitySmoothing *float64 `json:"velocity_smoothing,omitempty"`
	PositionSmoothing *float64 `json:"position_smoothing,omitempty"`
	PredictionFactor  *float64 `json:"prediction_factor,omitempty"`
	KalmanTimeStep    *float64 `json:"kalman_time_step,omitempty"`

	// Interpolation
	InterpolationPeriod *string  `json:"interpolation_period,omitempty"`
	InterpolationFactor *float64 `json:"interpolation_factor,omitempty"`

	// Flow control
	RefreshPeriod     *string `json:"refresh_period,omitempty"`
	ResponseTimeout   *string `json:"response_timeout,omitempty"`
	ReconnectBackoff  *string `json:"reconnect_backoff,omitempty"`
	CaptureRetryDelay *string `json:"capture_retry_delay,omitempty"`

	LogLevel *string `json:"log_level,omitempty"`
}

// Empty returns Config with all fields unset
func Empty() *Config {
	return &Config{}
}

// Load reads Config from JSON file and validates it. Omitted fields keep their defaults
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errors.Errorf("config file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "can't stat config file")
	}
	if fileInfo.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "can't read config file")
	}
	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "can't parse config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks values which are set
func (c *Config) Validate() error {
	fractions := []struct {
		name  string
		value *float64
	}{
		{"velocity_smoothing", c.VelocitySmoothing},
		{"position_smoothing", c.PositionSmoothing},
		{"prediction_factor", c.PredictionFactor},
		{"interpolation_factor", c.InterpolationFactor},
	}
	for _, f := range fractions {
		if f.value != nil && (*f.value < 0 || *f.value > 1) {
			return errors.Errorf("%s must be between 0 and 1, got %f", f.name, *f.value)
		}
	}
	if c.GateFraction != nil && *c.GateFraction <= 0 {
		return errors.Errorf("gate_fraction must be positive, got %f", *c.GateFraction)
	}
	positives := []struct {
		name  string
		value *float64
	}{
		{"max_dim", c.MaxDim},
		{"viewport_width", c.ViewportWidth},
		{"viewport_height", c.ViewportHeight},
		{"kalman_time_step", c.KalmanTimeStep},
	}
	for _, f := range positives {
		if f.value != nil && *f.value <= 0 {
			return errors.Errorf("%s must be positive, got %f", f.name, *f.value)
		}
	}
	if c.Smoother != nil && *c.Smoother != SmootherEMA && *c.Smoother != SmootherKalman {
		return errors.Errorf("smoother must be %q or %q, got %q", SmootherEMA, SmootherKalman, *c.Smoother)
	}
	durations := []struct {
		name  string
		value *string
	}{
		{"grace_window", c.GraceWindow},
		{"interpolation_period", c.InterpolationPeriod},
		{"refresh_period", c.RefreshPeriod},
		{"response_timeout", c.ResponseTimeout},
		{"reconnect_backoff", c.ReconnectBackoff},
		{"capture_retry_delay", c.CaptureRetryDelay},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return errors.Wrapf(err, "invalid %s '%s'", d.name, *d.value)
		}
		if parsed <= 0 {
			return errors.Errorf("%s must be positive, got %s", d.name, parsed)
		}
	}
	return nil
}

func duration(value *string, def time.Duration) time.Duration {
	if value == nil || *value == "" {
		return def
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return def
	}
	return d
}

func float(value *float64, def float64) float64 {
	if value == nil {
		return def
	}
	return *value
}

// GetEndpoint returns recognition service URL
func (c *Config) GetEndpoint() string {
	if c.Endpoint == nil {
		return "ws://localhost:8000/ws"
	}
	return *c.Endpoint
}

// GetMaxDim returns longest side of frames sent to recognition service
func (c *Config) GetMaxDim() float64 {
	return float(c.MaxDim, mot.DefaultMaxDim)
}

// GetViewportWidth returns width of overlay surface
func (c *Config) GetViewportWidth() float64 {
	return float(c.ViewportWidth, 1280)
}

// GetViewportHeight returns height of overlay surface
func (c *Config) GetViewportHeight() float64 {
	return float(c.ViewportHeight, 720)
}

// GetGateFraction returns association gate as share of viewport width
func (c *Config) GetGateFraction() float64 {
	return float(c.GateFraction, mot.DefaultGateFraction)
}

// GetGraceWindow returns ghost lifetime
func (c *Config) GetGraceWindow() time.Duration {
	return duration(c.GraceWindow, mot.DefaultGraceWindow)
}

// GetSmoother returns name of smoother
func (c *Config) GetSmoother() string {
	if c.Smoother == nil || *c.Smoother == "" {
		return SmootherEMA
	}
	return *c.Smoother
}

// GetVelocitySmoothing returns alpha
func (c *Config) GetVelocitySmoothing() float64 {
	return float(c.VelocitySmoothing, mot.DefaultVelocitySmoothing)
}

// GetPositionSmoothing returns beta
func (c *Config) GetPositionSmoothing() float64 {
	return float(c.PositionSmoothing, mot.DefaultPositionSmoothing)
}

// GetPredictionFactor returns gamma
func (c *Config) GetPredictionFactor() float64 {
	return float(c.PredictionFactor, mot.DefaultPredictionFactor)
}

// GetKalmanTimeStep returns time step of Kalman smoother
func (c *Config) GetKalmanTimeStep() float64 {
	return float(c.KalmanTimeStep, 1.0)
}

// GetInterpolationPeriod returns period of interpolation clock
func (c *Config) GetInterpolationPeriod() time.Duration {
	return duration(c.InterpolationPeriod, mot.DefaultInterpolationPeriod)
}

// GetInterpolationFactor returns share of velocity applied on every interpolation tick
func (c *Config) GetInterpolationFactor() float64 {
	return float(c.InterpolationFactor, mot.DefaultInterpolationFactor)
}

// GetRefreshPeriod returns display refresh period
func (c *Config) GetRefreshPeriod() time.Duration {
	return duration(c.RefreshPeriod, flow.DefaultRefreshPeriod)
}

// GetResponseTimeout returns response watchdog
func (c *Config) GetResponseTimeout() time.Duration {
	return duration(c.ResponseTimeout, flow.DefaultResponseTimeout)
}

// GetReconnectBackoff returns delay before redialing
func (c *Config) GetReconnectBackoff() time.Duration {
	return duration(c.ReconnectBackoff, flow.DefaultReconnectBackoff)
}

// GetCaptureRetryDelay returns delay between failed capture attempts
func (c *Config) GetCaptureRetryDelay() time.Duration {
	return duration(c.CaptureRetryDelay, flow.DefaultCaptureRetryDelay)
}

// GetLogLevel returns zerolog level name
func (c *Config) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}

// NewSmoother builds configured smoother
func (c *Config) NewSmoother() mot.Smoother {
	if c.GetSmoother() == SmootherKalman {
		return mot.NewKalmanSmootherWithTime(c.GetKalmanTimeStep())
	}
	return mot.NewEMASmootherWithParams(c.GetVelocitySmoothing(), c.GetPositionSmoothing(), c.GetPredictionFactor())
}

// EngineOptions returns options for mot.NewEngine. Extra options are appended
func (c *Config) EngineOptions(extra ...mot.EngineOption) []mot.EngineOption {
	opts := []mot.EngineOption{
		mot.WithGraceWindow(c.GetGraceWindow()),
		mot.WithGateFraction(c.GetGateFraction()),
		mot.WithSmoother(c.NewSmoother()),
		mot.WithInterpolationFactor(c.GetInterpolationFactor()),
	}
	return append(opts, extra...)
}

// ControllerOptions returns options for flow.NewController. Extra options are appended
func (c *Config) ControllerOptions(extra ...flow.Option) []flow.Option {
	opts := []flow.Option{
		flow.WithRefreshPeriod(c.GetRefreshPeriod()),
		flow.WithResponseTimeout(c.GetResponseTimeout()),
		flow.WithReconnectBackoff(c.GetReconnectBackoff()),
		flow.WithCaptureRetryDelay(c.GetCaptureRetryDelay()),
	}
	return append(opts, extra...)
}
