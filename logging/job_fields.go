package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// JobMetrics describes one inpainting job for structured logs.
type JobMetrics struct {
	Token        string
	Width        int
	Height       int
	Images       int
	PriorSteps   int
	DecoderSteps int
	Duration     time.Duration
}

// StepsPerSecond is the denoising throughput over all three stages.
func (m JobMetrics) StepsPerSecond() float64 {
	if m.Duration <= 0 {
		return 0
	}
	return float64(m.DecoderSteps+2*m.PriorSteps) / m.Duration.Seconds()
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (m JobMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("token", m.Token)
	enc.AddInt("width", m.Width)
	enc.AddInt("height", m.Height)
	enc.AddInt("images", m.Images)
	enc.AddInt("prior_steps", m.PriorSteps)
	enc.AddInt("decoder_steps", m.DecoderSteps)
	if m.Duration > 0 {
		enc.AddDuration("duration", m.Duration)
		enc.AddFloat64("steps_per_second", m.StepsPerSecond())
	}
	return nil
}

// JobFields wraps job metrics as a single "job" field.
//
//	logger.Info("job complete", logging.JobFields(m))
func JobFields(m JobMetrics) zap.Field {
	return zap.Object("job", m)
}
