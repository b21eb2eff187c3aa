// Package pixelbuf converts between the plugin's flat base64 pixel buffers and
// Go images.
//
// Input buffers are row-major, 3 bytes per pixel (RGB) or 4 bytes per pixel (RGBA)
// when the source layer carries an alpha channel. Alpha is stripped on input.
// Output buffers are always RGBA with a constant alpha of 255.
package pixelbuf

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Channel counts for the wire formats.
const (
	ChannelsRGB  = 3
	ChannelsRGBA = 4

	// OpaqueAlpha is appended to every output pixel.
	OpaqueAlpha = 255
)

var (
	ErrInvalidEncoding   = errors.New("pixelbuf: invalid base64 encoding")
	ErrInvalidDimensions = errors.New("pixelbuf: invalid dimensions")
	ErrSizeMismatch      = errors.New("pixelbuf: buffer size does not match dimensions")
)

// Channels returns the per-pixel byte count for an input buffer.
func Channels(hasAlpha bool) int {
	if hasAlpha {
		return ChannelsRGBA
	}
	return ChannelsRGB
}

// Decode decodes a base64 buffer of width×height pixels and returns it as RGB.
func Decode(encoded string, width, height int, hasAlpha bool) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	channels := Channels(hasAlpha)
	if want := width * height * channels; len(raw) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %dx%dx%d",
			ErrSizeMismatch, len(raw), want, width, height, channels)
	}

	if hasAlpha {
		return StripAlpha(raw), nil
	}
	return raw, nil
}

// StripAlpha drops every fourth byte of an RGBA buffer.
func StripAlpha(rgba []byte) []byte {
	rgb := make([]byte, 0, len(rgba)/ChannelsRGBA*ChannelsRGB)
	for i := 0; i+ChannelsRGBA <= len(rgba); i += ChannelsRGBA {
		rgb = append(rgb, rgba[i], rgba[i+1], rgba[i+2])
	}
	return rgb
}

// ToImage wraps an RGB buffer as an opaque RGBA image.
func ToImage(rgb []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if want := width * height * ChannelsRGB; len(rgb) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(rgb), want)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for src, dst := 0, 0; src < len(rgb); src, dst = src+ChannelsRGB, dst+ChannelsRGBA {
		img.Pix[dst] = rgb[src]
		img.Pix[dst+1] = rgb[src+1]
		img.Pix[dst+2] = rgb[src+2]
		img.Pix[dst+3] = OpaqueAlpha
	}
	return img, nil
}

// FromImage flattens an image into a row-major RGB buffer.
func FromImage(img image.Image) []byte {
	b := img.Bounds()
	rgb := make([]byte, 0, b.Dx()*b.Dy()*ChannelsRGB)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgb = append(rgb, c.R, c.G, c.B)
		}
	}
	return rgb
}

// ExpandRGBA flattens an image into RGBA bytes with every alpha set to 255.
func ExpandRGBA(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*ChannelsRGBA)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out = append(out, c.R, c.G, c.B, OpaqueAlpha)
		}
	}
	return out
}

// EncodeRGBA returns the transfer form of an output image.
func EncodeRGBA(img image.Image) string {
	return base64.StdEncoding.EncodeToString(ExpandRGBA(img))
}

// Encode base64-encodes a raw buffer.
func Encode(buf []byte) string {
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeRGBA decodes a transfer-form output image.
func DecodeRGBA(encoded string, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if want := width * height * ChannelsRGBA; len(raw) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(raw), want)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, raw)
	return img, nil
}

// GrayToRGB replicates each byte of a single-channel buffer into three channels.
// Editor selection masks arrive as one byte per pixel.
func GrayToRGB(gray []byte) []byte {
	rgb := make([]byte, 0, len(gray)*ChannelsRGB)
	for _, v := range gray {
		rgb = append(rgb, v, v, v)
	}
	return rgb
}
