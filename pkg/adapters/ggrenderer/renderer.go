// Package ggrenderer provides a renderer implementation using the gg library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/user/postergen/pkg/ports"
)

// Renderer implements ports.Renderer using the gg library.
type Renderer struct {
	encoder png.Encoder
}

// New creates a new Renderer. Exported posters favour size over encode speed.
func New() *Renderer {
	return &Renderer{encoder: png.Encoder{CompressionLevel: png.BestCompression}}
}

// CreateCanvas creates a new drawing canvas.
func (r *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	dc := gg.NewContext(width, height)
	dc.SetColor(bg)
	dc.Clear()
	return &Canvas{dc: dc}
}

// DecodeImage decodes image data into an image.Image.
func (r *Renderer) DecodeImage(data []byte, format ports.ImageFormat) (image.Image, error) {
	reader := bytes.NewReader(data)

	switch format {
	case ports.FormatJPEG:
		return jpeg.Decode(reader)
	case ports.FormatPNG:
		return png.Decode(reader)
	case ports.FormatWebP:
		return webp.Decode(reader)
	default:
		img, _, err := image.Decode(reader)
		return img, err
	}
}

// EncodeImage encodes an image. quality only applies to JPEG.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		if quality <= 0 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		if err := r.encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// ResizeImage resizes an image to the specified dimensions.
func (r *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

var _ ports.Renderer = (*Renderer)(nil)

// Canvas implements ports.Canvas using gg.Context.
type Canvas struct {
	dc *gg.Context
	// badFont is a FontPath that failed to load; it is not retried.
	badFont string
}

// DrawImageScaled draws img centered in the box, scaled to fit without distortion.
func (c *Canvas) DrawImageScaled(img image.Image, x, y, width, height int) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 || width <= 0 || height <= 0 {
		return
	}
	scale := min(float64(width)/float64(bounds.Dx()), float64(height)/float64(bounds.Dy()))
	w := float64(bounds.Dx()) * scale
	h := float64(bounds.Dy()) * scale

	c.dc.Push()
	defer c.dc.Pop()
	c.dc.Translate(float64(x)+(float64(width)-w)/2, float64(y)+(float64(height)-h)/2)
	c.dc.Scale(scale, scale)
	c.dc.DrawImage(img, -bounds.Min.X, -bounds.Min.Y)
}

// DrawRect draws a filled rectangle.
func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Fill()
}

// DrawRectStroke draws a rectangle outline.
func (c *Canvas) DrawRectStroke(x, y, w, h int, col color.Color, strokeWidth float64) {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(strokeWidth)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Stroke()
}

// DrawText draws text vertically centered on y. Without a usable FontPath
// the current face is kept, which is gg's built-in face unless an earlier
// call loaded one.
func (c *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	c.dc.SetColor(style.Color)
	if style.FontPath != "" && style.FontPath != c.badFont {
		if err := c.dc.LoadFontFace(style.FontPath, style.FontSize); err != nil {
			c.badFont = style.FontPath
		}
	}

	ax := 0.0
	switch style.Align {
	case ports.AlignCenter:
		ax = 0.5
	case ports.AlignRight:
		ax = 1.0
	}
	c.dc.DrawStringAnchored(text, float64(x), float64(y), ax, 0.5)
}

// ToImage returns the canvas as an image.Image.
func (c *Canvas) ToImage() image.Image {
	return c.dc.Image()
}

var _ ports.Canvas = (*Canvas)(nil)
