//go:build kandinsky && cgo && !stub

// Native backend linking libkandinsky.
// Build with: CGO_ENABLED=1 go build -tags kandinsky
//
// Prerequisites:
//   1. libkandinsky built as a shared library (prior + inpaint decoder)
//   2. CGO_CFLAGS pointing at kandinsky.h
//   3. CGO_LDFLAGS linking -lkandinsky
//
// Example:
//   CGO_CFLAGS="-I${KD_PATH}/include" \
//   CGO_LDFLAGS="-L${KD_PATH}/build -lkandinsky -Wl,-rpath,${KD_PATH}/build" \
//   go build -tags kandinsky

package kandinsky

/*
#cgo LDFLAGS: -lkandinsky

#include <stdlib.h>
#include <stdint.h>

typedef struct kd_ctx kd_ctx;

extern kd_ctx* kd_load(const char* model_dir, const char* device);
extern void kd_free(kd_ctx* ctx);
extern const char* kd_backend_info(kd_ctx* ctx);
extern int kd_embed_dim(kd_ctx* ctx);

// Each call reports finished steps through goKandinskyStep(handle, step).
extern int kd_prior(kd_ctx* ctx, const char** prompts, int n, const char* negative_prompt,
                    int steps, float guidance_scale, uintptr_t handle,
                    float* out_image_embeds, float* out_negative_embeds);
extern int kd_decode(kd_ctx* ctx, const float* image_embeds, const float* negative_embeds, int n,
                     const uint8_t* images_rgb, const uint8_t* masks_rgb, int width, int height,
                     int steps, float guidance_scale, uintptr_t handle, uint8_t* out_rgb);
*/
import "C"

import (
	"context"
	"fmt"
	"image"
	"runtime/cgo"
	"unsafe"

	"golang.org/x/image/draw"

	"github.com/sinvec/gimp-kandinsky/pixelbuf"
)

type nativeBackend struct {
	ctx *C.kd_ctx
	dim int
}

type stepTarget struct {
	ctx    context.Context
	onStep StepFunc
}

//export goKandinskyStep
func goKandinskyStep(handle C.uintptr_t, step C.int) C.int {
	t := cgo.Handle(handle).Value().(*stepTarget)
	t.onStep(int(step))
	if t.ctx.Err() != nil {
		return 1 // abort
	}
	return 0
}

func loadBackendImpl(cfg Config) (Backend, error) {
	if err := checkModelDir(cfg.ModelDir); err != nil {
		return nil, err
	}

	cDir := C.CString(cfg.ModelDir)
	defer C.free(unsafe.Pointer(cDir))
	cDevice := C.CString(cfg.Device)
	defer C.free(unsafe.Pointer(cDevice))

	ctx := C.kd_load(cDir, cDevice)
	if ctx == nil {
		return nil, fmt.Errorf("%w: libkandinsky returned null context (device %s)", ErrModelLoadFailed, cfg.Device)
	}
	return &nativeBackend{ctx: ctx, dim: int(C.kd_embed_dim(ctx))}, nil
}

func (b *nativeBackend) Prior(ctx context.Context, p PriorParams, onStep StepFunc) (*Embeddings, error) {
	n := len(p.Prompts)
	cPrompts := (*[1 << 20]*C.char)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0)))))[:n:n]
	defer C.free(unsafe.Pointer(&cPrompts[0]))
	for i, prompt := range p.Prompts {
		cPrompts[i] = C.CString(prompt)
		defer C.free(unsafe.Pointer(cPrompts[i]))
	}
	cNeg := C.CString(p.NegativePrompt)
	defer C.free(unsafe.Pointer(cNeg))

	imageOut := make([]float32, n*b.dim)
	negOut := make([]float32, n*b.dim)

	h := cgo.NewHandle(&stepTarget{ctx: ctx, onStep: onStep})
	defer h.Delete()

	rc := C.kd_prior(b.ctx, &cPrompts[0], C.int(n), cNeg,
		C.int(p.Steps), C.float(p.GuidanceScale), C.uintptr_t(h),
		(*C.float)(unsafe.Pointer(&imageOut[0])), (*C.float)(unsafe.Pointer(&negOut[0])))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rc != 0 {
		return nil, fmt.Errorf("%w: kd_prior returned %d", ErrGenerationFailed, int(rc))
	}

	return &Embeddings{
		ImageEmbeds:         split(imageOut, n, b.dim),
		NegativeImageEmbeds: split(negOut, n, b.dim),
	}, nil
}

func (b *nativeBackend) Decode(ctx context.Context, p DecodeParams, onStep StepFunc) ([]image.Image, error) {
	n := len(p.Images)
	plane := p.Width * p.Height * pixelbuf.ChannelsRGB
	bounds := image.Rect(0, 0, p.Width, p.Height)

	images := make([]byte, 0, n*plane)
	masks := make([]byte, 0, n*plane)
	for i := 0; i < n; i++ {
		images = append(images, pixelbuf.FromImage(fit(p.Images[i], bounds))...)
		masks = append(masks, pixelbuf.FromImage(fit(p.Masks[i], bounds))...)
	}
	out := make([]byte, n*plane)

	h := cgo.NewHandle(&stepTarget{ctx: ctx, onStep: onStep})
	defer h.Delete()

	rc := C.kd_decode(b.ctx,
		(*C.float)(unsafe.Pointer(&join(p.ImageEmbeds)[0])),
		(*C.float)(unsafe.Pointer(&join(p.NegativeImageEmbeds)[0])),
		C.int(n),
		(*C.uint8_t)(unsafe.Pointer(&images[0])), (*C.uint8_t)(unsafe.Pointer(&masks[0])),
		C.int(p.Width), C.int(p.Height),
		C.int(p.Steps), C.float(p.GuidanceScale), C.uintptr_t(h),
		(*C.uint8_t)(unsafe.Pointer(&out[0])))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rc != 0 {
		return nil, fmt.Errorf("%w: kd_decode returned %d", ErrGenerationFailed, int(rc))
	}

	result := make([]image.Image, n)
	for i := range result {
		img, err := pixelbuf.ToImage(out[i*plane:(i+1)*plane], p.Width, p.Height)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		result[i] = img
	}
	return result, nil
}

func (b *nativeBackend) Info() string {
	return C.GoString(C.kd_backend_info(b.ctx))
}

func (b *nativeBackend) Close() error {
	if b.ctx != nil {
		C.kd_free(b.ctx)
		b.ctx = nil
	}
	return nil
}

func fit(img image.Image, bounds image.Rectangle) image.Image {
	if img.Bounds() == bounds {
		return img
	}
	dst := image.NewRGBA(bounds)
	draw.ApproxBiLinear.Scale(dst, bounds, img, img.Bounds(), draw.Src, nil)
	return dst
}

func split(flat []float32, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = flat[i*dim : (i+1)*dim]
	}
	return out
}

func join(vs [][]float32) []float32 {
	var out []float32
	for _, v := range vs {
		out = append(out, v...)
	}
	return out
}
