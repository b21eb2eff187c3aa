package kandinsky

import "errors"

// Sentinel errors for model operations.
var (
	ErrModelNotFound   = errors.New("kandinsky: model directory not found")
	ErrModelLoadFailed = errors.New("kandinsky: failed to load model")
	ErrModelClosed     = errors.New("kandinsky: model is closed")
	ErrInvalidDevice   = errors.New("kandinsky: unsupported device")

	ErrGenerationFailed = errors.New("kandinsky: inpainting failed")
	ErrInvalidParams    = errors.New("kandinsky: invalid inpainting parameters")
	ErrInvalidPrompt    = errors.New("kandinsky: invalid prompt")
)
