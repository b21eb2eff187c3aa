package kandinsky

import (
	"context"
	"fmt"
	"image"
)

// Backend is the diffusion library: a prior that maps prompts to image embeddings
// and an inpaint decoder. Implementations report each finished step through the
// StepFunc they are given.
type Backend interface {
	Prior(ctx context.Context, p PriorParams, onStep StepFunc) (*Embeddings, error)
	Decode(ctx context.Context, p DecodeParams, onStep StepFunc) ([]image.Image, error)
	Info() string
	Close() error
}

// GenerateInpainting runs the three stages in order:
//
//	A: prior on the positive prompts        -> cb.ImageEmbeds
//	B: prior on the negative prior prompt   -> cb.NegativeEmbeds
//	C: decoder with both embeddings         -> cb.Decoder
//
// When NegativeDecoderPrompt is empty the decoder takes stage B's negative
// channel, otherwise stage B's image channel.
func GenerateInpainting(ctx context.Context, b Backend, p InpaintParams, cb Callbacks) ([]image.Image, error) {
	if err := ValidateParams(p); err != nil {
		return nil, err
	}
	n := len(p.Prompts)

	positive, err := b.Prior(ctx, PriorParams{
		Prompts:        p.Prompts,
		NegativePrompt: p.NegativePriorPrompt,
		Steps:          p.PriorSteps,
		GuidanceScale:  p.PriorGuidanceScale,
	}, orNop(cb.ImageEmbeds))
	if err != nil {
		return nil, fmt.Errorf("image embeds prior: %w", err)
	}

	negPrompts := make([]string, n)
	for i := range negPrompts {
		negPrompts[i] = p.NegativePriorPrompt
	}
	negative, err := b.Prior(ctx, PriorParams{
		Prompts:       negPrompts,
		Steps:         p.PriorSteps,
		GuidanceScale: p.PriorGuidanceScale,
	}, orNop(cb.NegativeEmbeds))
	if err != nil {
		return nil, fmt.Errorf("negative embeds prior: %w", err)
	}

	negEmbeds := negative.NegativeImageEmbeds
	if p.NegativeDecoderPrompt != "" {
		negEmbeds = negative.ImageEmbeds
	}

	images, err := b.Decode(ctx, DecodeParams{
		ImageEmbeds:         positive.ImageEmbeds,
		NegativeImageEmbeds: negEmbeds,
		Images:              p.Images,
		Masks:               p.Masks,
		Steps:               p.DecoderSteps,
		GuidanceScale:       p.DecoderGuidanceScale,
		Width:               p.Width,
		Height:              p.Height,
	}, orNop(cb.Decoder))
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}

	if len(images) != n {
		return nil, fmt.Errorf("%w: decoder returned %d images, want %d", ErrGenerationFailed, len(images), n)
	}
	for i, img := range images {
		if img == nil {
			return nil, fmt.Errorf("%w: decoder returned nil image %d", ErrGenerationFailed, i)
		}
		if b := img.Bounds(); b.Dx() != p.Width || b.Dy() != p.Height {
			return nil, fmt.Errorf("%w: image %d is %dx%d, want %dx%d",
				ErrGenerationFailed, i, b.Dx(), b.Dy(), p.Width, p.Height)
		}
	}
	return images, nil
}

func orNop(f StepFunc) StepFunc {
	if f == nil {
		return func(int) {}
	}
	return f
}
