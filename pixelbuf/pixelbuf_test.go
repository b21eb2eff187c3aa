package pixelbuf

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestDecode(t *testing.T) {
	rgb := []byte{1, 2, 3, 4, 5, 6}
	rgba := []byte{1, 2, 3, 9, 4, 5, 6, 9}

	tests := []struct {
		name     string
		encoded  string
		width    int
		height   int
		hasAlpha bool
		want     []byte
		wantErr  error
	}{
		{
			name:    "rgb buffer",
			encoded: base64.StdEncoding.EncodeToString(rgb),
			width:   2,
			height:  1,
			want:    rgb,
		},
		{
			name:     "rgba buffer is stripped",
			encoded:  base64.StdEncoding.EncodeToString(rgba),
			width:    1,
			height:   2,
			hasAlpha: true,
			want:     rgb,
		},
		{
			name:    "length mismatch",
			encoded: base64.StdEncoding.EncodeToString(rgb[:5]),
			width:   2,
			height:  1,
			wantErr: ErrSizeMismatch,
		},
		{
			name:     "rgb buffer declared as rgba",
			encoded:  base64.StdEncoding.EncodeToString(rgb),
			width:    2,
			height:   1,
			hasAlpha: true,
			wantErr:  ErrSizeMismatch,
		},
		{
			name:    "bad base64",
			encoded: "***",
			width:   1,
			height:  1,
			wantErr: ErrInvalidEncoding,
		},
		{
			name:    "zero width",
			encoded: "",
			width:   0,
			height:  1,
			wantErr: ErrInvalidDimensions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.encoded, tt.width, tt.height, tt.hasAlpha)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != string(tt.want) {
				t.Errorf("Decode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeRGBARoundTrip(t *testing.T) {
	const width, height = 5, 3

	images := make([]image.Image, 3)
	for n := range images {
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				// Translucent source pixels must still come back opaque.
				img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 60), B: uint8(n * 70), A: 17})
			}
		}
		images[n] = img
	}

	for n, img := range images {
		decoded, err := DecodeRGBA(EncodeRGBA(img), width, height)
		if err != nil {
			t.Fatalf("image %d: decode: %v", n, err)
		}
		if got := decoded.Bounds(); got.Dx() != width || got.Dy() != height {
			t.Fatalf("image %d: bounds = %v, want %dx%d", n, got, width, height)
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := decoded.RGBAAt(x, y)
				if c.A != OpaqueAlpha {
					t.Fatalf("image %d: alpha at (%d,%d) = %d, want 255", n, x, y, c.A)
				}
				if c.R != uint8(x*40) || c.G != uint8(y*60) || c.B != uint8(n*70) {
					t.Fatalf("image %d: pixel (%d,%d) = %v", n, x, y, c)
				}
			}
		}
	}
}

func TestToImageAndFromImage(t *testing.T) {
	rgb := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120}

	img, err := ToImage(rgb, 2, 2)
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	if img.RGBAAt(1, 1) != (color.RGBA{R: 100, G: 110, B: 120, A: 255}) {
		t.Errorf("pixel (1,1) = %v", img.RGBAAt(1, 1))
	}

	if got := FromImage(img); string(got) != string(rgb) {
		t.Errorf("FromImage() = %v, want %v", got, rgb)
	}

	if _, err := ToImage(rgb[:11], 2, 2); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("short buffer error = %v, want ErrSizeMismatch", err)
	}
}

func TestGrayToRGB(t *testing.T) {
	got := GrayToRGB([]byte{0, 255})
	want := []byte{0, 0, 0, 255, 255, 255}
	if string(got) != string(want) {
		t.Errorf("GrayToRGB() = %v, want %v", got, want)
	}
}
