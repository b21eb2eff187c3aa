// Package coordinator implements the request side of the job protocol: it
// admits at most one job at a time, mints the token that identifies it, and
// answers progress and result queries against the shared job state.
//
// Every operation is non-blocking. Stale or unknown tokens never produce an
// error; they get a degraded answer instead.
package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sinvec/gimp-kandinsky/jobstate"
	"github.com/sinvec/gimp-kandinsky/kandinsky"
	"github.com/sinvec/gimp-kandinsky/pixelbuf"
)

// ErrInvalidRequest wraps every validation failure in Submit.
var ErrInvalidRequest = errors.New("coordinator: invalid request")

// Coordinator owns the live token. Only the most recently accepted job's
// token is honoured.
type Coordinator struct {
	state  *jobstate.State
	logger *zap.Logger

	mu        sync.Mutex
	token     string
	collected bool

	newToken func() string
}

// New returns a coordinator over state.
func New(state *jobstate.State, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		state:    state,
		logger:   logger,
		newToken: func() string { return uuid.NewString() },
	}
}

// Submit validates req and, if the worker is idle and no result is waiting,
// hands it to the worker under a fresh token.
func (c *Coordinator) Submit(req InpaintRequest) (SubmitResponse, error) {
	// Refuse before decoding megabytes of pixels. Accept still decides.
	if status, busy := c.refusal(); busy {
		c.logger.Debug("Submit refused before decoding", zap.String("status", status))
		return SubmitResponse{Status: status}, nil
	}

	job, err := decodeRequest(req)
	if err != nil {
		return SubmitResponse{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	job.Token = c.newToken()
	switch err := c.state.Accept(job); {
	case errors.Is(err, jobstate.ErrInferencing):
		c.logger.Debug("Submit rejected, job in flight")
		return SubmitResponse{Status: StatusInferencing}, nil
	case errors.Is(err, jobstate.ErrBlocked):
		c.logger.Debug("Submit rejected, result not collected")
		return SubmitResponse{Status: StatusBlocked}, nil
	case err != nil:
		return SubmitResponse{}, fmt.Errorf("accept job: %w", err)
	}

	c.token = job.Token
	c.collected = false
	c.logger.Info("Job accepted",
		zap.String("token", job.Token),
		zap.Int("width", job.Width),
		zap.Int("height", job.Height),
		zap.Int("images", job.ImageCount),
		zap.Int("total_steps", job.TotalSteps()),
	)
	return SubmitResponse{Status: StatusInitiated, Token: job.Token}, nil
}

// Progress reports the worker status and, for the live token, the progress
// vector. Other tokens see zeros.
func (c *Coordinator) Progress(token string) ProgressResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := ProgressResponse{Status: c.flagStatus()}
	if c.isLive(token) {
		resp.Progress = c.state.Progress()
	}
	return resp
}

// CollectResult hands over the live job's result exactly once. Once it has
// been delivered, the same token reads as "listening".
func (c *Coordinator) CollectResult(token string) (ResultResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isLive(token) || c.state.Active() {
		return ResultResponse{Status: c.flagStatus()}, nil
	}
	if c.collected {
		return ResultResponse{Status: StatusListening}, nil
	}

	result, ok := c.state.TakeResult()
	if !ok {
		return ResultResponse{Status: StatusEmpty}, nil
	}
	c.collected = true

	images := make([]string, len(result.Images))
	for i, img := range result.Images {
		images[i] = pixelbuf.EncodeRGBA(img)
	}
	c.logger.Info("Result collected",
		zap.String("token", token),
		zap.Int("images", len(images)),
	)
	return ResultResponse{
		Status: StatusReady,
		Images: images,
		Width:  result.Width,
		Height: result.Height,
	}, nil
}

// Status returns a snapshot for health reporting.
func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Status:        c.flagStatus(),
		Token:         c.token,
		Progress:      c.state.Progress(),
		ResultPending: c.state.ResultPending(),
	}
}

// Drain discards an undelivered result at shutdown and reports whether one
// was waiting. The live token then reads as "empty".
func (c *Coordinator) Drain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Drain()
}

// refusal reports the status a submit gets while the worker is busy or a
// result is waiting.
func (c *Coordinator) refusal() (string, bool) {
	switch {
	case c.state.Active():
		return StatusInferencing, true
	case c.state.ResultPending():
		return StatusBlocked, true
	}
	return "", false
}

func (c *Coordinator) isLive(token string) bool {
	return token != "" && token == c.token
}

func (c *Coordinator) flagStatus() string {
	if c.state.Active() {
		return StatusInferencing
	}
	return StatusListening
}

// decodeRequest validates req and decodes its pixel buffers.
func decodeRequest(req InpaintRequest) (*jobstate.Job, error) {
	if err := kandinsky.ValidatePrompt(req.Prompt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	switch {
	case req.Width <= 0 || req.Height <= 0:
		return nil, fmt.Errorf("%w: width and height must be positive, got %dx%d",
			ErrInvalidRequest, req.Width, req.Height)
	case req.Width > kandinsky.MaxImageSize || req.Height > kandinsky.MaxImageSize:
		return nil, fmt.Errorf("%w: %dx%d exceeds maximum %d",
			ErrInvalidRequest, req.Width, req.Height, kandinsky.MaxImageSize)
	case req.PriorSteps < 0 || req.DecoderSteps < 0:
		return nil, fmt.Errorf("%w: steps must not be negative", ErrInvalidRequest)
	case req.PriorSteps > kandinsky.MaxSteps || req.DecoderSteps > kandinsky.MaxSteps:
		return nil, fmt.Errorf("%w: steps exceed maximum %d", ErrInvalidRequest, kandinsky.MaxSteps)
	case req.ImageNumber < 1 || req.ImageNumber > kandinsky.MaxBatch:
		return nil, fmt.Errorf("%w: image_number must be within 1..%d, got %d",
			ErrInvalidRequest, kandinsky.MaxBatch, req.ImageNumber)
	}

	image, err := pixelbuf.Decode(req.Image, req.Width, req.Height, req.HasAlpha)
	if err != nil {
		return nil, fmt.Errorf("%w: image: %v", ErrInvalidRequest, err)
	}
	mask, err := pixelbuf.Decode(req.Mask, req.Width, req.Height, false)
	if err != nil {
		return nil, fmt.Errorf("%w: mask: %v", ErrInvalidRequest, err)
	}

	return &jobstate.Job{
		Prompt:                req.Prompt,
		NegativePriorPrompt:   req.NegativePriorPrompt,
		NegativeDecoderPrompt: req.NegativeDecoderPrompt,
		Image:                 image,
		Mask:                  mask,
		Width:                 req.Width,
		Height:                req.Height,
		PriorSteps:            req.PriorSteps,
		DecoderSteps:          req.DecoderSteps,
		GuidanceScale:         req.GuidanceScale,
		ImageCount:            req.ImageNumber,
	}, nil
}
