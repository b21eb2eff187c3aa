package kandinsky

import (
	"context"
	"errors"
	"image"
	"testing"
)

// recordingBackend records calls and returns fixed embeddings.
type recordingBackend struct {
	priorCalls []PriorParams
	decode     DecodeParams
	failPrior  int // 1-based prior call that fails; 0 never
	closed     bool
}

var (
	embedPos = []float32{1, 1}
	embedNeg = []float32{2, 2}
)

func (r *recordingBackend) Prior(ctx context.Context, p PriorParams, onStep StepFunc) (*Embeddings, error) {
	r.priorCalls = append(r.priorCalls, p)
	if r.failPrior == len(r.priorCalls) {
		return nil, errors.New("prior exploded")
	}
	for i := 0; i < p.Steps; i++ {
		onStep(i)
	}
	out := &Embeddings{}
	for range p.Prompts {
		out.ImageEmbeds = append(out.ImageEmbeds, embedPos)
		out.NegativeImageEmbeds = append(out.NegativeImageEmbeds, embedNeg)
	}
	return out, nil
}

func (r *recordingBackend) Decode(ctx context.Context, p DecodeParams, onStep StepFunc) ([]image.Image, error) {
	r.decode = p
	for i := 0; i < p.Steps; i++ {
		onStep(i)
	}
	out := make([]image.Image, len(p.Images))
	for i := range out {
		out[i] = image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	}
	return out, nil
}

func (r *recordingBackend) Info() string { return "recording" }
func (r *recordingBackend) Close() error { r.closed = true; return nil }

func testParams(n int) InpaintParams {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	mask := image.NewGray(image.Rect(0, 0, 8, 8))
	prompts, images, masks := Replicate("a red apple", img, mask, n)
	return InpaintParams{
		Prompts:              prompts,
		Images:               images,
		Masks:                masks,
		NegativePriorPrompt:  "",
		PriorSteps:           3,
		DecoderSteps:         5,
		PriorGuidanceScale:   4,
		DecoderGuidanceScale: 4,
		Width:                8,
		Height:               8,
	}
}

func TestGenerateInpainting_StageOrderAndCallbacks(t *testing.T) {
	b := &recordingBackend{}
	var steps [3][]int
	cb := Callbacks{
		ImageEmbeds:    func(s int) { steps[0] = append(steps[0], s) },
		NegativeEmbeds: func(s int) { steps[1] = append(steps[1], s) },
		Decoder:        func(s int) { steps[2] = append(steps[2], s) },
	}

	images, err := GenerateInpainting(context.Background(), b, testParams(2), cb)
	if err != nil {
		t.Fatalf("GenerateInpainting() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}

	want := [3]int{3, 3, 5}
	for stage, n := range want {
		if len(steps[stage]) != n {
			t.Errorf("stage %d reported %d steps, want %d", stage, len(steps[stage]), n)
			continue
		}
		for i, s := range steps[stage] {
			if s != i {
				t.Errorf("stage %d step %d = %d", stage, i, s)
			}
		}
	}

	if len(b.priorCalls) != 2 {
		t.Fatalf("prior called %d times, want 2", len(b.priorCalls))
	}
	if got := b.priorCalls[0].Prompts[0]; got != "a red apple" {
		t.Errorf("first prior prompt = %q", got)
	}
	if got := b.priorCalls[1].Prompts; len(got) != 2 || got[0] != "" {
		t.Errorf("second prior prompts = %q, want two empty negatives", got)
	}
}

func TestGenerateInpainting_NegativeChannelSelection(t *testing.T) {
	tests := []struct {
		name            string
		negativeDecoder string
		want            []float32
	}{
		{"empty decoder negative uses negative channel", "", embedNeg},
		{"non-empty decoder negative uses image channel", "blurry", embedPos},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingBackend{}
			p := testParams(1)
			p.NegativeDecoderPrompt = tt.negativeDecoder

			if _, err := GenerateInpainting(context.Background(), b, p, Callbacks{}); err != nil {
				t.Fatalf("GenerateInpainting() error = %v", err)
			}
			got := b.decode.NegativeImageEmbeds[0]
			if got[0] != tt.want[0] {
				t.Errorf("decoder negative embeds = %v, want %v", got, tt.want)
			}
			if b.decode.ImageEmbeds[0][0] != embedPos[0] {
				t.Errorf("decoder image embeds = %v, want %v", b.decode.ImageEmbeds[0], embedPos)
			}
		})
	}
}

func TestGenerateInpainting_PriorFailure(t *testing.T) {
	b := &recordingBackend{failPrior: 2}
	decoderCalled := false
	_, err := GenerateInpainting(context.Background(), b, testParams(1), Callbacks{
		Decoder: func(int) { decoderCalled = true },
	})
	if err == nil {
		t.Fatal("expected error from failing prior")
	}
	if decoderCalled {
		t.Error("decoder ran after prior failure")
	}
}

func TestGenerateInpainting_InvalidParams(t *testing.T) {
	p := testParams(1)
	p.Width = 0
	_, err := GenerateInpainting(context.Background(), &recordingBackend{}, p, Callbacks{})
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("error = %v, want ErrInvalidParams", err)
	}
}

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*InpaintParams)
		wantErr error
	}{
		{"valid", func(*InpaintParams) {}, nil},
		{"zero steps allowed", func(p *InpaintParams) { p.PriorSteps, p.DecoderSteps = 0, 0 }, nil},
		{"empty batch", func(p *InpaintParams) { p.Prompts = nil }, ErrInvalidParams},
		{"mismatched masks", func(p *InpaintParams) { p.Masks = p.Masks[:0] }, ErrInvalidParams},
		{"too large", func(p *InpaintParams) { p.Width = MaxImageSize + 1 }, ErrInvalidParams},
		{"negative steps", func(p *InpaintParams) { p.DecoderSteps = -1 }, ErrInvalidParams},
		{"null byte prompt", func(p *InpaintParams) { p.Prompts[0] = "a\x00b" }, ErrInvalidPrompt},
		{"nil mask", func(p *InpaintParams) { p.Masks[0] = nil }, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(1)
			tt.mutate(&p)
			err := ValidateParams(p)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateParams() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateParams() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		completed, prior, decoder int
		want                      float64
	}{
		{0, 25, 50, 0},
		{50, 25, 50, 0.5},
		{100, 25, 50, 1},
		{150, 25, 50, 1},
		{0, 0, 0, 0},
	}
	for _, tt := range tests {
		if got := ProgressFraction(tt.completed, tt.prior, tt.decoder); got != tt.want {
			t.Errorf("ProgressFraction(%d, %d, %d) = %v, want %v",
				tt.completed, tt.prior, tt.decoder, got, tt.want)
		}
	}
}

func TestModel_CloseIdempotent(t *testing.T) {
	b := &recordingBackend{}
	m := NewModel(b, Config{})

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if !b.closed || !m.IsClosed() {
		t.Error("backend not closed")
	}
	if _, err := m.Inpaint(context.Background(), testParams(1), Callbacks{}); !errors.Is(err, ErrModelClosed) {
		t.Errorf("Inpaint after Close error = %v, want ErrModelClosed", err)
	}
}
