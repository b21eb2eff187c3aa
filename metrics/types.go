// Package metrics keeps in-memory statistics about inpainting jobs for the
// status endpoint. Nothing is persisted.
package metrics

import "time"

// JobRecord is one finished inpainting job.
type JobRecord struct {
	// Token is the job token handed to the client
	Token string `json:"token"`

	// Status is "success" or "error"
	Status string `json:"status"`

	PromptLength int `json:"prompt_length"`
	Width        int `json:"width"`
	Height       int `json:"height"`
	Images       int `json:"images"`
	PriorSteps   int `json:"prior_steps"`
	DecoderSteps int `json:"decoder_steps"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// ErrorMsg contains error details if Status is "error"
	ErrorMsg string `json:"error_msg,omitempty"`
}

// JobMetrics is the aggregate over all recorded jobs.
type JobMetrics struct {
	TotalProcessed int64 `json:"total_processed"`
	TotalSuccess   int64 `json:"total_success"`
	TotalErrors    int64 `json:"total_errors"`
	TotalImages    int64 `json:"total_images"`

	// SuccessRate is a percentage (0-100)
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
	// AvgStepTime is the mean wall time per denoising step across successful jobs
	AvgStepTime time.Duration `json:"avg_step_time"`
}

// SystemStatus is the service's overall state.
type SystemStatus struct {
	// Health is "running" or "error"
	Health    string        `json:"health"`
	Version   string        `json:"version"`
	Backend   string        `json:"backend"`
	Uptime    time.Duration `json:"uptime"`
	LastCheck time.Time     `json:"last_check"`
}

// Status snapshot served by /api/status.
type Status struct {
	System SystemStatus `json:"system"`
	Jobs   JobMetrics   `json:"jobs"`
	Recent []JobRecord  `json:"recent"`
}

// Status constants for JobRecord
const (
	JobStatusSuccess = "success"
	JobStatusError   = "error"
)

// Health constants for SystemStatus
const (
	SystemHealthRunning = "running"
	SystemHealthError   = "error"
)
