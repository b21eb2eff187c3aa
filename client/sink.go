package client

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
)

// LayerName is the name the plugin gives every result layer.
const LayerName = "KandinskyResult"

// LayerSink receives result images. bounds places the layer in the editor
// image; its size always equals the image size.
type LayerSink interface {
	AddLayer(img *image.RGBA, bounds image.Rectangle) error
}

// FileLayerSink writes each layer as a PNG in Dir, named
// KandinskyResult-<n>.png. Offsets are kept in Layers.
type FileLayerSink struct {
	Dir string

	mu     sync.Mutex
	layers []FileLayer
}

// FileLayer is one written layer.
type FileLayer struct {
	Path   string
	Bounds image.Rectangle
}

// NewFileLayerSink creates dir if needed.
func NewFileLayerSink(dir string) (*FileLayerSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("client: create output directory: %w", err)
	}
	return &FileLayerSink{Dir: dir}, nil
}

// AddLayer writes img to the next free file name.
func (s *FileLayerSink) AddLayer(img *image.RGBA, bounds image.Rectangle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.Dir, fmt.Sprintf("%s-%d.png", LayerName, len(s.layers)+1))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	s.layers = append(s.layers, FileLayer{Path: path, Bounds: bounds})
	return nil
}

// Layers returns the layers written so far.
func (s *FileLayerSink) Layers() []FileLayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FileLayer(nil), s.layers...)
}
