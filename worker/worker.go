// Package worker runs the single inference loop. It owns the model for the life
// of the process, takes one job at a time from the shared state, reports
// per-step progress, and deposits the result.
package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sinvec/gimp-kandinsky/jobstate"
	"github.com/sinvec/gimp-kandinsky/kandinsky"
	"github.com/sinvec/gimp-kandinsky/logging"
	"github.com/sinvec/gimp-kandinsky/metrics"
	"github.com/sinvec/gimp-kandinsky/pixelbuf"
)

// DefaultPollTimeout is how long the worker waits for a job before looping.
const DefaultPollTimeout = 2 * time.Second

// Config configures a Worker.
type Config struct {
	PollTimeout time.Duration
	Model       kandinsky.Config
}

// backendReporter is implemented by metrics stores that display the backend.
type backendReporter interface {
	SetBackend(info string)
}

// Worker is the inference context. Create with New and run with Run in its own
// goroutine.
type Worker struct {
	state    *jobstate.State
	load     kandinsky.Loader
	cfg      Config
	recorder metrics.Recorder
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu       sync.Mutex
	inFlight string
}

// New returns a worker. recorder may be nil.
func New(state *jobstate.State, load kandinsky.Loader, cfg Config, recorder metrics.Recorder, logger *zap.Logger) *Worker {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return &Worker{
		state:    state,
		load:     load,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run loads the model and serves jobs until ctx is cancelled or Stop is called.
// A job in progress always runs to completion. The model is released before
// Run returns.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)

	model, err := w.load(w.cfg.Model)
	if err != nil {
		w.logger.Error("Failed to load model", zap.Error(err))
		return fmt.Errorf("load model: %w", err)
	}
	defer func() {
		if err := model.Close(); err != nil {
			w.logger.Error("Failed to release model", zap.Error(err))
			return
		}
		w.logger.Info("Model released")
	}()

	info := model.Info()
	w.logger.Info("Model loaded",
		zap.String("backend", info),
		zap.String("device", w.cfg.Model.Device),
	)
	if r, ok := w.recorder.(backendReporter); ok {
		r.SetBackend(info)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	// Inference ignores cancellation; only the wait for the next job is interruptible.
	inferCtx := context.WithoutCancel(ctx)

	for {
		job, err := w.state.NextJob(loopCtx, w.cfg.PollTimeout)
		switch {
		case errors.Is(err, jobstate.ErrNoJob):
			w.logger.Debug("No inference requests")
			continue
		case err != nil:
			w.logger.Info("Worker stopping")
			return nil
		}

		w.process(inferCtx, model, job)
	}
}

// Stop asks Run to return after the current wait or job.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Done is closed when Run has returned and the model is released.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// InFlight returns the token of the job being inpainted, or "".
func (w *Worker) InFlight() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

func (w *Worker) setInFlight(token string) {
	w.mu.Lock()
	w.inFlight = token
	w.mu.Unlock()
}

func (w *Worker) process(ctx context.Context, model *kandinsky.Model, job *jobstate.Job) {
	w.state.MarkActive()
	w.setInFlight(job.Token)
	defer w.setInFlight("")
	start := time.Now()
	log := w.logger.With(zap.String("token", job.Token))
	log.Info("Inpainting started",
		zap.String("prompt", job.Prompt),
		zap.Int("images", job.ImageCount),
	)

	images, err := w.inpaint(ctx, model, job)
	if err == nil {
		err = w.state.Complete(&jobstate.Result{
			Token:  job.Token,
			Images: images,
			Width:  job.Width,
			Height: job.Height,
		})
	} else {
		w.state.Fail()
	}

	duration := time.Since(start)
	rec := metrics.JobRecord{
		Token:        job.Token,
		PromptLength: len(job.Prompt),
		Width:        job.Width,
		Height:       job.Height,
		Images:       job.ImageCount,
		PriorSteps:   job.PriorSteps,
		DecoderSteps: job.DecoderSteps,
		StartTime:    start,
		EndTime:      start.Add(duration),
		Duration:     duration,
		Status:       metrics.JobStatusSuccess,
	}

	if err != nil {
		rec.Status = metrics.JobStatusError
		rec.ErrorMsg = err.Error()
		log.Error("Inpainting failed", zap.Error(err), zap.Duration("duration", duration))
	} else {
		log.Info("Inpainting complete", logging.JobFields(logging.JobMetrics{
			Token:        job.Token,
			Width:        job.Width,
			Height:       job.Height,
			Images:       len(images),
			PriorSteps:   job.PriorSteps,
			DecoderSteps: job.DecoderSteps,
			Duration:     duration,
		}))
	}

	if w.recorder != nil {
		w.recorder.RecordJob(rec)
	}
}

// inpaint runs the pipeline for one job. Panics from the backend are returned
// as errors.
func (w *Worker) inpaint(ctx context.Context, model *kandinsky.Model, job *jobstate.Job) (images []image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", kandinsky.ErrGenerationFailed, r)
		}
	}()

	img, err := pixelbuf.ToImage(job.Image, job.Width, job.Height)
	if err != nil {
		return nil, fmt.Errorf("image buffer: %w", err)
	}
	mask, err := pixelbuf.ToImage(job.Mask, job.Width, job.Height)
	if err != nil {
		return nil, fmt.Errorf("mask buffer: %w", err)
	}

	prompts, imgs, masks := kandinsky.Replicate(job.Prompt, img, mask, job.ImageCount)
	params := kandinsky.InpaintParams{
		Prompts:               prompts,
		Images:                imgs,
		Masks:                 masks,
		NegativePriorPrompt:   job.NegativePriorPrompt,
		NegativeDecoderPrompt: job.NegativeDecoderPrompt,
		PriorSteps:            job.PriorSteps,
		DecoderSteps:          job.DecoderSteps,
		PriorGuidanceScale:    job.GuidanceScale,
		DecoderGuidanceScale:  job.GuidanceScale,
		Width:                 job.Width,
		Height:                job.Height,
	}

	return model.Inpaint(ctx, params, kandinsky.Callbacks{
		ImageEmbeds:    w.advance(jobstate.StageImageEmbeds),
		NegativeEmbeds: w.advance(jobstate.StageNegativeEmbeds),
		Decoder:        w.advance(jobstate.StageDecoder),
	})
}

// advance stores step+1 as the stage's completed count.
func (w *Worker) advance(stage int) kandinsky.StepFunc {
	return func(step int) {
		w.state.Advance(stage, step+1)
	}
}
