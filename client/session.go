package client

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/sinvec/gimp-kandinsky/coordinator"
	"github.com/sinvec/gimp-kandinsky/jobstate"
	"github.com/sinvec/gimp-kandinsky/kandinsky"
	"github.com/sinvec/gimp-kandinsky/pixelbuf"
)

// ProgressFunc receives the completion fraction in [0,1] and the raw vector.
type ProgressFunc func(fraction float64, progress jobstate.ProgressVector)

// SessionConfig bounds the polling loop.
type SessionConfig struct {
	// PollInterval is the pause between progress queries
	PollInterval time.Duration

	// Timeout bounds the whole session, from submit to the last layer
	Timeout time.Duration

	// ResultRetries is how many extra times an "empty" result is asked for
	ResultRetries    int
	ResultRetryDelay time.Duration

	// OnProgress is optional
	OnProgress ProgressFunc
}

// DefaultSessionConfig polls every 100ms, like the plugin.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PollInterval:     100 * time.Millisecond,
		Timeout:          30 * time.Minute,
		ResultRetries:    5,
		ResultRetryDelay: 500 * time.Millisecond,
	}
}

// Job is one inpainting request plus where its layers go.
type Job struct {
	Request coordinator.InpaintRequest

	// Origin is the source layer's offset in the editor image
	Origin image.Point
}

// Bounds is the area the result layers cover.
func (j Job) Bounds() image.Rectangle {
	return image.Rect(0, 0, j.Request.Width, j.Request.Height).Add(j.Origin)
}

// Session runs jobs one at a time against a server.
type Session struct {
	client *Client
	cfg    SessionConfig
	logger *zap.Logger
}

// NewSession returns a session. Zero config fields take their defaults.
func NewSession(c *Client, cfg SessionConfig, logger *zap.Logger) *Session {
	def := DefaultSessionConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ResultRetries < 0 {
		cfg.ResultRetries = 0
	}
	if cfg.ResultRetryDelay <= 0 {
		cfg.ResultRetryDelay = def.ResultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{client: c, cfg: cfg, logger: logger}
}

// Run submits job, waits for it, and adds one layer per result image to sink.
// It returns the number of layers added. A busy or blocked server is reported
// as ErrBusy or ErrBlocked and never retried.
func (s *Session) Run(ctx context.Context, job Job, sink LayerSink) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	submit, err := s.client.Submit(ctx, job.Request)
	if err != nil {
		return 0, err
	}
	switch submit.Status {
	case coordinator.StatusInitiated:
	case coordinator.StatusBlocked:
		return 0, ErrBlocked
	case coordinator.StatusInferencing:
		return 0, ErrBusy
	default:
		return 0, fmt.Errorf("%w: submit returned %q", ErrUnexpectedStatus, submit.Status)
	}

	token := submit.Token
	log := s.logger.With(zap.String("token", token))
	log.Info("Job submitted",
		zap.Int("width", job.Request.Width),
		zap.Int("height", job.Request.Height),
		zap.Int("images", job.Request.ImageNumber),
	)

	if err := s.waitListening(ctx, job.Request, token); err != nil {
		return 0, err
	}

	result, err := s.collect(ctx, token)
	if err != nil {
		return 0, err
	}

	bounds := job.Bounds()
	for i, enc := range result.Images {
		img, err := pixelbuf.DecodeRGBA(enc, result.Width, result.Height)
		if err != nil {
			return i, fmt.Errorf("client: image %d: %w", i, err)
		}
		if err := sink.AddLayer(img, bounds); err != nil {
			return i, fmt.Errorf("client: add layer %d: %w", i, err)
		}
	}

	log.Info("Result applied", zap.Int("layers", len(result.Images)))
	return len(result.Images), nil
}

// waitListening polls progress until the worker reports listening.
func (s *Session) waitListening(ctx context.Context, req coordinator.InpaintRequest, token string) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p, err := s.client.Progress(ctx, token)
		if err != nil {
			return timeoutOr(ctx, err)
		}
		if s.cfg.OnProgress != nil {
			s.cfg.OnProgress(kandinsky.ProgressFraction(p.Progress.Sum(), req.PriorSteps, req.DecoderSteps), p.Progress)
		}
		if p.Status == coordinator.StatusListening {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return timeoutOr(ctx, ctx.Err())
		}
	}
}

// collect asks for the result, retrying "empty" a bounded number of times.
func (s *Session) collect(ctx context.Context, token string) (coordinator.ResultResponse, error) {
	for attempt := 0; ; attempt++ {
		r, err := s.client.Result(ctx, token)
		if err != nil {
			return r, timeoutOr(ctx, err)
		}

		switch r.Status {
		case coordinator.StatusReady:
			return r, nil
		case coordinator.StatusEmpty, coordinator.StatusInferencing:
		case coordinator.StatusListening:
			// another session already took it
			return r, ErrNoResult
		default:
			return r, fmt.Errorf("%w: result returned %q", ErrUnexpectedStatus, r.Status)
		}

		if attempt >= s.cfg.ResultRetries {
			return r, ErrNoResult
		}
		s.logger.Debug("Result not ready, retrying",
			zap.String("status", r.Status),
			zap.Int("attempt", attempt+1),
		)

		select {
		case <-time.After(s.cfg.ResultRetryDelay):
		case <-ctx.Done():
			return r, timeoutOr(ctx, ctx.Err())
		}
	}
}

// timeoutOr maps an expired session deadline to ErrTimeout.
func timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
