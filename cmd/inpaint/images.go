package main

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sinvec/gimp-kandinsky/pixelbuf"
)

// loadImage decodes any registered format.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// sourceBuffer flattens img for the wire. Images with transparency are sent
// as RGBA with has_alpha set, the way the plugin sends layers with an alpha
// channel.
func sourceBuffer(img image.Image) (buf []byte, hasAlpha bool) {
	b := img.Bounds()
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return pixelbuf.FromImage(img), false
	}

	buf = make([]byte, 0, b.Dx()*b.Dy()*pixelbuf.ChannelsRGBA)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			buf = append(buf, c.R, c.G, c.B, c.A)
		}
	}
	return buf, true
}

// maskBuffer reduces mask to one gray channel and widens it back to RGB, as
// the plugin does with the selection channel. White marks the region to
// repaint.
func maskBuffer(mask image.Image, width, height int) ([]byte, error) {
	b := mask.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("mask is %dx%d, image is %dx%d", b.Dx(), b.Dy(), width, height)
	}

	gray := make([]byte, 0, width*height)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray = append(gray, color.GrayModel.Convert(mask.At(x, y)).(color.Gray).Y)
		}
	}
	return pixelbuf.GrayToRGB(gray), nil
}
