package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LdDl/overlay-mot/config"
	"github.com/LdDl/overlay-mot/flow"
	"github.com/LdDl/overlay-mot/mot"
	"github.com/LdDl/overlay-mot/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var configPath string
	var endpoint string
	var framePath string
	var naturalWidth, naturalHeight float64
	var viewportWidth, viewportHeight float64
	var renderInterpolated bool
	flag.StringVar(&configPath, "config", "", "Path to JSON config. Defaults are used when empty.")
	flag.StringVar(&endpoint, "url", "", "Override recognition service websocket URL.")
	flag.StringVar(&framePath, "frame", "", "Path to encoded frame (already downscaled) which is sent on every cycle.")
	flag.Float64Var(&naturalWidth, "natural-width", 1920, "Natural width of the video source.")
	flag.Float64Var(&naturalHeight, "natural-height", 1080, "Natural height of the video source.")
	flag.Float64Var(&viewportWidth, "viewport-width", 0, "Override width of the overlay surface.")
	flag.Float64Var(&viewportHeight, "viewport-height", 0, "Override height of the overlay surface.")
	flag.BoolVar(&renderInterpolated, "render-interpolated", false, "Print interpolated positions too, not only real updates.")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg := config.Empty()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("Can't load config")
		}
	}
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.GetLogLevel()).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	if endpoint == "" {
		endpoint = cfg.GetEndpoint()
	}
	if viewportWidth <= 0 {
		viewportWidth = cfg.GetViewportWidth()
	}
	if viewportHeight <= 0 {
		viewportHeight = cfg.GetViewportHeight()
	}
	geometry := mot.Geometry{
		NaturalWidth:   naturalWidth,
		NaturalHeight:  naturalHeight,
		ViewportWidth:  viewportWidth,
		ViewportHeight: viewportHeight,
		MaxDim:         cfg.GetMaxDim(),
	}

	capturer, err := newFileCapturer(framePath, geometry)
	if err != nil {
		log.Fatal().Err(err).Str("path", framePath).Msg("Can't open frame source")
	}

	output := newJSONRenderer(os.Stdout)
	engineOpts := []mot.EngineOption{mot.WithLogger(log.Logger)}
	if renderInterpolated {
		engineOpts = append(engineOpts, mot.WithRenderer(output))
	}
	engine := mot.NewEngine(cfg.EngineOptions(engineOpts...)...)
	logger := log.Logger.With().Str("session_id", engine.SessionID().String()).Logger()

	handler := flow.HandlerFunc(func(geometry mot.Geometry, detections []mot.RawDetection) {
		tracked := engine.Process(geometry, detections)
		if !renderInterpolated {
			output.Render(tracked)
		}
		logger.Debug().Int("tracked", len(tracked)).Str("primary", mot.PrimaryIdentity(tracked)).Msg("Detection cycle")
	})
	controller := flow.NewController(
		transport.NewWebsocketDialer(endpoint),
		capturer,
		handler,
		cfg.ControllerOptions(flow.WithLogger(logger))...,
	)
	interpolator := mot.NewInterpolator(engine, nil, cfg.GetInterpolationPeriod())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sentWidth, sentHeight := geometry.SentSize()
	logger.Info().
		Str("endpoint", endpoint).
		Float64("sent_width", sentWidth).
		Float64("sent_height", sentHeight).
		Str("smoother", cfg.GetSmoother()).
		Msg("Tracking session started")
	if err := flow.NewSession(controller, interpolator).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Session stopped with error")
		os.Exit(1)
	}
	sent, received := controller.Stats()
	logger.Info().Uint64("sent", sent).Uint64("received", received).Msg("Tracking session stopped")
}

// fileCapturer replays a single encoded frame
type fileCapturer struct {
	file     *os.File
	payload  []byte
	geometry mot.Geometry
}

func newFileCapturer(path string, geometry mot.Geometry) (*fileCapturer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &fileCapturer{
		file:     file,
		payload:  payload,
		geometry: geometry,
	}, nil
}

func (c *fileCapturer) Capture(ctx context.Context) (flow.Frame, error) {
	if len(c.payload) == 0 {
		return flow.Frame{}, flow.ErrEmptyFrame
	}
	return flow.Frame{Payload: c.payload, Geometry: c.geometry}, nil
}

func (c *fileCapturer) Close() error {
	return c.file.Close()
}

// jsonRenderer prints every published list as a JSON line
type jsonRenderer struct {
	encoder *json.Encoder
}

func newJSONRenderer(w io.Writer) *jsonRenderer {
	return &jsonRenderer{encoder: json.NewEncoder(w)}
}

func (r *jsonRenderer) Render(tracked []mot.TrackedDetection) {
	if err := r.encoder.Encode(tracked); err != nil {
		log.Error().Err(err).Msg("Can't write tracked detections")
	}
}
