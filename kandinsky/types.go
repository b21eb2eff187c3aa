package kandinsky

import (
	"fmt"
	"image"
	"strings"
)

// StepFunc is called after each denoising step with the zero-based step index.
type StepFunc func(step int)

// Callbacks carries one progress callback per pipeline stage. Nil callbacks are
// skipped.
type Callbacks struct {
	ImageEmbeds    StepFunc // stage A: prior on the positive prompt
	NegativeEmbeds StepFunc // stage B: prior on the negative prompt
	Decoder        StepFunc // stage C: inpaint decoder
}

// InpaintParams describes one batch. Prompts, Images and Masks have one entry
// per requested output.
type InpaintParams struct {
	Prompts []string
	Images  []image.Image
	Masks   []image.Image

	NegativePriorPrompt   string
	NegativeDecoderPrompt string

	PriorSteps           int
	DecoderSteps         int
	PriorGuidanceScale   float64
	DecoderGuidanceScale float64

	Width  int
	Height int
}

// PriorParams is the input of one prior pass.
type PriorParams struct {
	Prompts        []string
	NegativePrompt string
	Steps          int
	GuidanceScale  float64
}

// Embeddings is the output of one prior pass: one vector per prompt on each
// channel.
type Embeddings struct {
	ImageEmbeds         [][]float32
	NegativeImageEmbeds [][]float32
}

// DecodeParams is the input of the decoder pass.
type DecodeParams struct {
	ImageEmbeds         [][]float32
	NegativeImageEmbeds [][]float32
	Images              []image.Image
	Masks               []image.Image
	Steps               int
	GuidanceScale       float64
	Width               int
	Height              int
}

// Parameter limits.
const (
	MaxPromptLength = 2000
	MaxImageSize    = 4096
	MaxSteps        = 500
	MaxBatch        = 16
)

// ValidatePrompt rejects prompts the native library cannot take.
func ValidatePrompt(prompt string) error {
	if strings.ContainsRune(prompt, '\x00') {
		return fmt.Errorf("%w: prompt contains null bytes", ErrInvalidPrompt)
	}
	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt length %d exceeds maximum %d",
			ErrInvalidPrompt, len(prompt), MaxPromptLength)
	}
	return nil
}

// ValidateParams checks an inpainting batch. This is a pure function.
func ValidateParams(p InpaintParams) error {
	n := len(p.Prompts)
	if n < 1 || n > MaxBatch {
		return fmt.Errorf("%w: batch size %d must be between 1 and %d", ErrInvalidParams, n, MaxBatch)
	}
	if len(p.Images) != n || len(p.Masks) != n {
		return fmt.Errorf("%w: got %d prompts, %d images, %d masks",
			ErrInvalidParams, n, len(p.Images), len(p.Masks))
	}
	for _, prompt := range append([]string{p.NegativePriorPrompt, p.NegativeDecoderPrompt}, p.Prompts...) {
		if err := ValidatePrompt(prompt); err != nil {
			return err
		}
	}

	if p.Width <= 0 || p.Width > MaxImageSize || p.Height <= 0 || p.Height > MaxImageSize {
		return fmt.Errorf("%w: size %dx%d must be within 1..%d",
			ErrInvalidParams, p.Width, p.Height, MaxImageSize)
	}
	if p.PriorSteps < 0 || p.PriorSteps > MaxSteps || p.DecoderSteps < 0 || p.DecoderSteps > MaxSteps {
		return fmt.Errorf("%w: steps prior=%d decoder=%d must be within 0..%d",
			ErrInvalidParams, p.PriorSteps, p.DecoderSteps, MaxSteps)
	}

	for i := 0; i < n; i++ {
		if p.Images[i] == nil || p.Masks[i] == nil {
			return fmt.Errorf("%w: image or mask %d is nil", ErrInvalidParams, i)
		}
	}
	return nil
}

// ProgressFraction converts completed steps into a 0..1 completion fraction.
// The ceiling is decoder steps plus two prior passes.
func ProgressFraction(completed, priorSteps, decoderSteps int) float64 {
	total := decoderSteps + 2*priorSteps
	if total <= 0 {
		return 0
	}
	f := float64(completed) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

// Replicate builds a batch of n identical prompt/image/mask entries, as the
// editor requests several variations of the same region.
func Replicate(prompt string, img, mask image.Image, n int) ([]string, []image.Image, []image.Image) {
	prompts := make([]string, n)
	images := make([]image.Image, n)
	masks := make([]image.Image, n)
	for i := 0; i < n; i++ {
		prompts[i] = prompt
		images[i] = img
		masks[i] = mask
	}
	return prompts, images, masks
}
