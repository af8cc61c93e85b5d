package mocks

import (
	"context"
	"image"
	"sync"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// Rasterizer is a mock implementation of ports.Rasterizer.
// By default it returns a blank image of the scaled request size.
type Rasterizer struct {
	mu sync.Mutex

	RenderFunc func(ctx context.Context, req ports.RenderRequest) (image.Image, error)

	// Track calls for assertions
	Calls []ports.RenderRequest
}

// NewRasterizer creates a new mock Rasterizer with default behavior.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// RenderMarkupOffscreen implements ports.Rasterizer.
func (m *Rasterizer) RenderMarkupOffscreen(ctx context.Context, req ports.RenderRequest) (image.Image, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, req)
	}
	scale := req.Scale
	if scale <= 0 {
		scale = 1
	}
	return image.NewRGBA(image.Rect(0, 0, int(float64(req.Width)*scale), int(float64(req.Height)*scale))), nil
}

// CallCount returns the number of renders requested so far.
func (m *Rasterizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

var _ ports.Rasterizer = (*Rasterizer)(nil)

// ImageProber is a mock implementation of ports.ImageProber.
type ImageProber struct {
	mu sync.Mutex

	NaturalSizeFunc func(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error)

	Calls int
}

// NaturalSize implements ports.ImageProber.
func (m *ImageProber) NaturalSize(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.NaturalSizeFunc != nil {
		return m.NaturalSizeFunc(ctx, html, css, viewport)
	}
	return pipeline.Dimensions{}, nil
}

var _ ports.ImageProber = (*ImageProber)(nil)
