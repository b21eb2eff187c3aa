package core

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sinvec/gimp-kandinsky/coordinator"
	"github.com/sinvec/gimp-kandinsky/kandinsky"
)

// Config holds all server configuration values.
type Config struct {
	// HTTP
	Host        string
	Port        int
	MaxBodySize int64 // bytes

	// Worker
	PollTimeout time.Duration // how long the worker waits for a job before looping

	// Progress websocket push interval
	ProgressInterval time.Duration

	// Lifecycle
	ShutdownTimeout   time.Duration
	WorkerStopTimeout time.Duration // wait for an in-flight inference at shutdown

	// Logging
	LogFile string
	DevMode bool

	// Metrics
	MetricsHistory int

	// Model
	Model kandinsky.Config
}

// Defaults. Port 5000 and a 2 second poll match what the GIMP plugin expects.
const (
	DefaultHost                   = "127.0.0.1"
	DefaultPort                   = 5000
	DefaultMaxBodyMB              = (coordinator.MaxRequestBytes + 1<<20 - 1) >> 20
	DefaultPollTimeoutSeconds     = 2
	DefaultProgressIntervalMS     = 250
	DefaultShutdownTimeoutSeconds = 30
	DefaultWorkerStopSeconds      = 600
	DefaultLogFile                = "kandinsky.log"
	DefaultMetricsHistory         = 100
)

// LoadConfig reads configuration from the environment. Call godotenv.Load first
// to pick up a .env file.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Host:              GetEnvOrDefault("KANDINSKY_HOST", DefaultHost),
		Port:              ParseIntEnv("KANDINSKY_PORT", DefaultPort),
		MaxBodySize:       ParseInt64Env("KANDINSKY_MAX_BODY_MB", DefaultMaxBodyMB) << 20,
		PollTimeout:       ParseDurationEnv("KANDINSKY_POLL_TIMEOUT_SECONDS", DefaultPollTimeoutSeconds),
		ProgressInterval:  time.Duration(ParseIntEnv("KANDINSKY_PROGRESS_INTERVAL_MS", DefaultProgressIntervalMS)) * time.Millisecond,
		ShutdownTimeout:   ParseDurationEnv("KANDINSKY_SHUTDOWN_TIMEOUT_SECONDS", DefaultShutdownTimeoutSeconds),
		WorkerStopTimeout: ParseDurationEnv("KANDINSKY_WORKER_STOP_TIMEOUT_SECONDS", DefaultWorkerStopSeconds),
		LogFile:           GetEnvOrDefault("KANDINSKY_LOG_FILE", DefaultLogFile),
		DevMode:           ParseBoolEnv("DEV_MODE", false),
		MetricsHistory:    ParseIntEnv("KANDINSKY_METRICS_HISTORY", DefaultMetricsHistory),
		Model:             kandinsky.LoadConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges. It returns a *ConfigError naming the variable to fix.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidValue("KANDINSKY_PORT", strconv.Itoa(c.Port), "must be between 1 and 65535")
	}
	if net.ParseIP(c.Host) == nil && c.Host != "localhost" {
		return ErrInvalidValue("KANDINSKY_HOST", c.Host, "must be an IP address or localhost")
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidValue("KANDINSKY_MAX_BODY_MB", fmt.Sprint(c.MaxBodySize>>20), "must be positive")
	}
	if c.PollTimeout <= 0 {
		return ErrInvalidValue("KANDINSKY_POLL_TIMEOUT_SECONDS", c.PollTimeout.String(), "must be positive")
	}
	if c.ProgressInterval <= 0 {
		return ErrInvalidValue("KANDINSKY_PROGRESS_INTERVAL_MS", c.ProgressInterval.String(), "must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return ErrInvalidValue("KANDINSKY_SHUTDOWN_TIMEOUT_SECONDS", c.ShutdownTimeout.String(), "must be positive")
	}
	if c.WorkerStopTimeout <= 0 {
		return ErrInvalidValue("KANDINSKY_WORKER_STOP_TIMEOUT_SECONDS", c.WorkerStopTimeout.String(), "must be positive")
	}
	if c.LogFile == "" {
		return ErrMissingConfig("KANDINSKY_LOG_FILE")
	}
	if c.MetricsHistory < 1 {
		return ErrInvalidValue("KANDINSKY_METRICS_HISTORY", strconv.Itoa(c.MetricsHistory), "must be at least 1")
	}
	if err := c.Model.Validate(); err != nil {
		switch {
		case errors.Is(err, kandinsky.ErrInvalidDevice):
			return ErrInvalidValue("KANDINSKY_DEVICE", c.Model.Device, "must be cuda or cpu")
		case errors.Is(err, kandinsky.ErrModelNotFound):
			return ErrModelNotFound(c.Model.ModelDir)
		}
		return ErrInvalidValue("KANDINSKY_MODEL_DIR", c.Model.ModelDir, err.Error())
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
