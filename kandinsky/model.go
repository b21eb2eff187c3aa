package kandinsky

import (
	"context"
	"fmt"
	"image"
	"sync"
)

// Model owns a loaded backend. Inpaint calls are serialized; Close releases the
// backend and is safe to call more than once.
type Model struct {
	mu      sync.Mutex
	backend Backend
	config  Config
	closed  bool
}

// Loader loads a model. The worker takes a Loader so tests can substitute
// backends.
type Loader func(cfg Config) (*Model, error)

// Load loads the backend selected at build time.
func Load(cfg Config) (*Model, error) {
	backend, err := loadBackendImpl(cfg)
	if err != nil {
		return nil, err
	}
	return NewModel(backend, cfg), nil
}

// NewModel wraps an already loaded backend.
func NewModel(backend Backend, cfg Config) *Model {
	return &Model{backend: backend, config: cfg}
}

// Inpaint runs the full pipeline on the model's backend.
func (m *Model) Inpaint(ctx context.Context, p InpaintParams, cb Callbacks) ([]image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrModelClosed
	}
	return GenerateInpainting(ctx, m.backend, p, cb)
}

// Info describes the backend, for logs.
func (m *Model) Info() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "closed"
	}
	return m.backend.Info()
}

// Close frees the backend.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.backend.Close(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (m *Model) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
