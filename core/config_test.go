package core

import (
	"errors"
	"testing"
	"time"

	"github.com/sinvec/gimp-kandinsky/coordinator"
)

var configEnv = []string{
	"KANDINSKY_HOST", "KANDINSKY_PORT", "KANDINSKY_MAX_BODY_MB",
	"KANDINSKY_POLL_TIMEOUT_SECONDS", "KANDINSKY_PROGRESS_INTERVAL_MS",
	"KANDINSKY_SHUTDOWN_TIMEOUT_SECONDS", "KANDINSKY_WORKER_STOP_TIMEOUT_SECONDS",
	"KANDINSKY_LOG_FILE", "DEV_MODE",
	"KANDINSKY_METRICS_HISTORY", "KANDINSKY_DEVICE", "KANDINSKY_MODEL_DIR",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Addr() != "127.0.0.1:5000" {
		t.Errorf("Addr() = %q, want 127.0.0.1:5000", cfg.Addr())
	}
	if cfg.WorkerStopTimeout != 10*time.Minute {
		t.Errorf("WorkerStopTimeout = %v, want 10m", cfg.WorkerStopTimeout)
	}
	if cfg.PollTimeout != 2*time.Second {
		t.Errorf("PollTimeout = %v, want 2s", cfg.PollTimeout)
	}
	if cfg.MaxBodySize < coordinator.MaxRequestBytes {
		t.Errorf("MaxBodySize = %d, smaller than the largest valid request (%d)", cfg.MaxBodySize, coordinator.MaxRequestBytes)
	}
	if cfg.LogFile != DefaultLogFile || cfg.DevMode {
		t.Errorf("unexpected logging config: %q dev=%v", cfg.LogFile, cfg.DevMode)
	}
	if cfg.Model.Device != "cuda" {
		t.Errorf("Model.Device = %q, want cuda", cfg.Model.Device)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("KANDINSKY_HOST", "0.0.0.0")
	t.Setenv("KANDINSKY_PORT", "8081")
	t.Setenv("KANDINSKY_POLL_TIMEOUT_SECONDS", "5")
	t.Setenv("DEV_MODE", "yes")
	t.Setenv("KANDINSKY_PROGRESS_INTERVAL_MS", "100")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8081" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.PollTimeout != 5*time.Second || cfg.ProgressInterval != 100*time.Millisecond {
		t.Errorf("durations = %v, %v", cfg.PollTimeout, cfg.ProgressInterval)
	}
	if !cfg.DevMode {
		t.Error("DevMode = false, want true")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		code string
	}{
		{"port out of range", "KANDINSKY_PORT", "70000", ErrCodeInvalidValue},
		{"host not an ip", "KANDINSKY_HOST", "example.com", ErrCodeInvalidValue},
		{"zero poll timeout", "KANDINSKY_POLL_TIMEOUT_SECONDS", "0", ErrCodeInvalidValue},
		{"zero worker stop", "KANDINSKY_WORKER_STOP_TIMEOUT_SECONDS", "0", ErrCodeInvalidValue},
		{"zero history", "KANDINSKY_METRICS_HISTORY", "0", ErrCodeInvalidValue},
		{"unknown device", "KANDINSKY_DEVICE", "tpu", ErrCodeInvalidValue},
		{"missing model dir", "KANDINSKY_MODEL_DIR", "/nonexistent/kandinsky-weights", ErrCodeModelNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := GetErrorCode(err); got != tt.code {
				t.Errorf("code = %q, want %q (err: %v)", got, tt.code, err)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	err := ErrMissingConfig("KANDINSKY_LOG_FILE")
	want := "Missing required configuration: KANDINSKY_LOG_FILE. Set KANDINSKY_LOG_FILE in your .env file"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := errors.Join(errors.New("startup"), ErrModelNotFound("/models"))
	if GetErrorCode(wrapped) != ErrCodeModelNotFound {
		t.Errorf("GetErrorCode through wrap = %q", GetErrorCode(wrapped))
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("plain error should have no code")
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"ON", false, true},
		{"0", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := ParseBoolEnv("TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestExitCodeName(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{ExitCodeSIGINT, "interrupted (SIGINT)"},
		{42, "unknown"},
	}
	for _, tt := range tests {
		if got := ExitCodeName(tt.code); got != tt.want {
			t.Errorf("ExitCodeName(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
