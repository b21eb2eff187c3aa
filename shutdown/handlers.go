package shutdown

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sinvec/gimp-kandinsky/core"
)

// HTTPServer stops accepting connections and waits for active requests.
func HTTPServer(srv interface {
	Shutdown(ctx context.Context) error
}) core.ShutdownFunc {
	return func(ctx context.Context) error {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Stoppable is a background loop that can be asked to stop. InFlight returns
// the token of the job it is running, or "".
type Stoppable interface {
	Stop()
	Done() <-chan struct{}
	InFlight() string
}

// StopWorker asks the inference worker to stop and waits up to wait for it to
// release the model. Inference cannot be interrupted, so the wait runs on its
// own clock rather than the shutdown deadline. When it runs out, the job left
// behind is logged and ErrWorkerAbandoned returned.
func StopWorker(logger *zap.Logger, w Stoppable, wait time.Duration) core.ShutdownFunc {
	return func(context.Context) error {
		w.Stop()
		if token := w.InFlight(); token != "" {
			logger.Info("Waiting for in-flight inference to finish",
				zap.String("token", token),
				zap.Duration("max_wait", wait))
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-w.Done():
			return nil
		case <-timer.C:
			logger.Error("Worker still busy at the stop deadline, model not released",
				zap.String("token", w.InFlight()),
				zap.Duration("waited", wait))
			return ErrWorkerAbandoned
		}
	}
}

// Drainer discards an undelivered result.
type Drainer interface {
	Drain() bool
}

// DrainResults drops a result nobody collected so its images are released.
func DrainResults(logger *zap.Logger, d Drainer) core.ShutdownFunc {
	return func(ctx context.Context) error {
		if d.Drain() {
			logger.Info("Discarded uncollected inpainting result")
		}
		return nil
	}
}

// SyncLogger flushes the logger. Sync on a terminal returns EINVAL or ENOTTY,
// which is ignored.
func SyncLogger(logger *zap.Logger) core.ShutdownFunc {
	return func(ctx context.Context) error {
		err := logger.Sync()
		if err != nil && (strings.Contains(err.Error(), "invalid argument") ||
			strings.Contains(err.Error(), "inappropriate ioctl")) {
			return nil
		}
		return err
	}
}
