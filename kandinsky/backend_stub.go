//go:build !kandinsky || stub

// Synthetic backend used when libkandinsky is not linked.
// Build with: go build
// Or explicitly: go build -tags stub

package kandinsky

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"time"

	"golang.org/x/image/draw"
)

// stubEmbedDim is the embedding width the real prior produces.
const stubEmbedDim = 1280

type stubBackend struct {
	delay time.Duration
}

// loadBackendImpl returns the synthetic backend. A configured model directory
// must still exist so misconfiguration shows up in stub builds too.
func loadBackendImpl(cfg Config) (Backend, error) {
	if err := checkModelDir(cfg.ModelDir); err != nil {
		return nil, err
	}
	return NewStubBackend(cfg.StubStepDelay), nil
}

// NewStubBackend returns a deterministic backend that sleeps delay per step.
func NewStubBackend(delay time.Duration) Backend {
	return &stubBackend{delay: delay}
}

func (s *stubBackend) Prior(ctx context.Context, p PriorParams, onStep StepFunc) (*Embeddings, error) {
	if err := s.walk(ctx, p.Steps, onStep); err != nil {
		return nil, err
	}

	out := &Embeddings{
		ImageEmbeds:         make([][]float32, len(p.Prompts)),
		NegativeImageEmbeds: make([][]float32, len(p.Prompts)),
	}
	for i, prompt := range p.Prompts {
		out.ImageEmbeds[i] = hashEmbedding(prompt)
		out.NegativeImageEmbeds[i] = hashEmbedding(p.NegativePrompt)
	}
	return out, nil
}

func (s *stubBackend) Decode(ctx context.Context, p DecodeParams, onStep StepFunc) ([]image.Image, error) {
	if len(p.ImageEmbeds) != len(p.Images) {
		return nil, fmt.Errorf("%w: %d embeddings for %d images", ErrGenerationFailed, len(p.ImageEmbeds), len(p.Images))
	}
	if err := s.walk(ctx, p.Steps, onStep); err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, p.Width, p.Height)
	out := make([]image.Image, len(p.Images))
	for i := range p.Images {
		src := image.NewRGBA(bounds)
		scaleInto(src, p.Images[i])
		mask := image.NewGray(bounds)
		scaleInto(mask, p.Masks[i])

		var neg []float32
		if i < len(p.NegativeImageEmbeds) {
			neg = p.NegativeImageEmbeds[i]
		}
		fill := embeddingColor(p.ImageEmbeds[i], neg)

		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				if mask.GrayAt(x, y).Y >= 128 {
					src.SetRGBA(x, y, fill)
				}
			}
		}
		out[i] = src
	}
	return out, nil
}

func (s *stubBackend) Info() string {
	return "stub (no libkandinsky linked)"
}

func (s *stubBackend) Close() error {
	return nil
}

// walk reports steps 0..n-1, honouring ctx between steps.
func (s *stubBackend) walk(ctx context.Context, n int, onStep StepFunc) error {
	for i := 0; i < n; i++ {
		if s.delay > 0 {
			t := time.NewTimer(s.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		onStep(i)
	}
	return nil
}

// scaleInto copies src into dst, resampling when the sizes differ.
func scaleInto(dst draw.Image, src image.Image) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}

func hashEmbedding(prompt string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(prompt))
	seed := h.Sum64()

	v := make([]float32, stubEmbedDim)
	for i := range v {
		// xorshift64
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v[i] = float32(seed%2001)/1000 - 1
	}
	return v
}

func embeddingColor(pos, neg []float32) color.RGBA {
	c := [3]float32{}
	for i, x := range pos {
		if i < len(neg) {
			x -= neg[i] / 4
		}
		c[i%3] += x
	}
	ch := func(f float32) uint8 {
		u := int(f) % 256
		if u < 0 {
			u += 256
		}
		return uint8(u)
	}
	return color.RGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: 255}
}
