package kandinsky

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds model settings.
type Config struct {
	ModelDir string // weights directory; empty uses the backend's default
	Device   string // "cuda" or "cpu"

	// StubStepDelay slows the synthetic backend down so progress is observable.
	StubStepDelay time.Duration
}

// Defaults.
const (
	DefaultDevice          = "cuda"
	DefaultStubStepDelayMS = 0
)

// LoadConfig reads model settings from the environment.
func LoadConfig() Config {
	device := os.Getenv("KANDINSKY_DEVICE")
	if device == "" {
		device = DefaultDevice
	}

	return Config{
		ModelDir:      os.Getenv("KANDINSKY_MODEL_DIR"),
		Device:        device,
		StubStepDelay: parseDelay(os.Getenv("KANDINSKY_STUB_STEP_DELAY_MS")),
	}
}

// parseDelay parses a millisecond count. Invalid or negative values yield the default.
func parseDelay(s string) time.Duration {
	ms, err := strconv.Atoi(s)
	if err != nil || ms < 0 {
		ms = DefaultStubStepDelayMS
	}
	return time.Duration(ms) * time.Millisecond
}

// Validate checks the device name and the weights directory, if one is set.
func (c Config) Validate() error {
	switch c.Device {
	case "cuda", "cpu":
	default:
		return fmt.Errorf("%w: %q (want cuda or cpu)", ErrInvalidDevice, c.Device)
	}
	return checkModelDir(c.ModelDir)
}

// checkModelDir verifies a configured weights directory. Empty means the
// backend default.
func checkModelDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrModelNotFound, dir)
	} else if err != nil {
		return fmt.Errorf("%w: unable to access %s: %v", ErrModelLoadFailed, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrModelNotFound, dir)
	}
	return nil
}
