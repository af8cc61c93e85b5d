package mocks

import (
	"image"
	"image/color"

	"github.com/user/postergen/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	CreateCanvasFunc func(width, height int, bg color.Color) ports.Canvas
	DecodeImageFunc  func(data []byte, format ports.ImageFormat) (image.Image, error)
	EncodeImageFunc  func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)
	ResizeImageFunc  func(img image.Image, width, height int) image.Image

	// Encoded records the images passed to EncodeImage.
	Encoded []image.Image
}

func (m *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	if m.CreateCanvasFunc != nil {
		return m.CreateCanvasFunc(width, height, bg)
	}
	return NewCanvas(width, height)
}

func (m *Renderer) DecodeImage(data []byte, format ports.ImageFormat) (image.Image, error) {
	if m.DecodeImageFunc != nil {
		return m.DecodeImageFunc(data, format)
	}
	return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
}

// EncodeImage returns a fixed placeholder payload unless EncodeImageFunc is set.
func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	m.Encoded = append(m.Encoded, img)
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	return []byte("encoded-image"), nil
}

func (m *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	if m.ResizeImageFunc != nil {
		return m.ResizeImageFunc(img, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

var _ ports.Renderer = (*Renderer)(nil)

// Canvas is a mock implementation of ports.Canvas that records draw calls.
type Canvas struct {
	width  int
	height int

	Images []image.Rectangle
	Texts  []string
	Rects  int
}

// NewCanvas creates a mock canvas of the given size.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{width: width, height: height}
}

func (m *Canvas) DrawImageScaled(img image.Image, x, y, width, height int) {
	m.Images = append(m.Images, image.Rect(x, y, x+width, y+height))
}

func (m *Canvas) DrawRect(x, y, w, h int, c color.Color) {
	m.Rects++
}

func (m *Canvas) DrawRectStroke(x, y, w, h int, c color.Color, strokeWidth float64) {
	m.Rects++
}

func (m *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	m.Texts = append(m.Texts, text)
}

func (m *Canvas) ToImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, m.width, m.height))
}

var _ ports.Canvas = (*Canvas)(nil)
