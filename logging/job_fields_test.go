package logging

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestJobMetrics_StepsPerSecond(t *testing.T) {
	tests := []struct {
		name string
		m    JobMetrics
		want float64
	}{
		{"zero duration", JobMetrics{PriorSteps: 25, DecoderSteps: 50}, 0},
		{"hundred steps in ten seconds", JobMetrics{PriorSteps: 25, DecoderSteps: 50, Duration: 10 * time.Second}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.StepsPerSecond(); got != tt.want {
				t.Errorf("StepsPerSecond() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	logger.Info("job complete", JobFields(JobMetrics{
		Token: "t-1", Width: 512, Height: 512, Images: 2,
		PriorSteps: 25, DecoderSteps: 50, Duration: 5 * time.Second,
	}))

	job, ok := logs.All()[0].ContextMap()["job"].(map[string]interface{})
	if !ok {
		t.Fatalf("job field is not an object: %v", logs.All()[0].ContextMap())
	}
	if job["token"] != "t-1" || job["images"] != 2 {
		t.Errorf("unexpected job object: %v", job)
	}
	if job["steps_per_second"] != 20.0 {
		t.Errorf("steps_per_second = %v, want 20", job["steps_per_second"])
	}
}

func TestParseLogLevelString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARNING ", zapcore.WarnLevel},
		{"Error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLogLevelString(tt.in, zapcore.InfoLevel); got != tt.want {
			t.Errorf("ParseLogLevelString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv("KANDINSKY_LOG_LEVEL", "error")
	if got := ParseLogLevel("KANDINSKY_LOG_LEVEL", zapcore.InfoLevel); got != zapcore.ErrorLevel {
		t.Errorf("ParseLogLevel() = %v, want error", got)
	}
}
