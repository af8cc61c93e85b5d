// Package contactsheet renders classified assets as a labelled thumbnail grid.
package contactsheet

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// Layout of the sheet, in pixels.
const (
	DefaultColumns = 4
	Cell           = 200
	Gap            = 16
	LabelHeight    = 36
)

var (
	background = color.RGBA{R: 245, G: 245, B: 245, A: 255}
	frame      = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	vectorFill = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	textColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// Input is a classified batch together with the original file bytes.
type Input struct {
	Assets  []pipeline.Asset
	Files   map[string][]byte // keyed by asset name
	Columns int
}

// Result is the rendered sheet.
type Result struct {
	Image image.Image
	PNG   []byte
}

// Stage draws contact sheets.
type Stage struct {
	renderer ports.Renderer
	logger   ports.Logger
}

// NewStage creates a new contact sheet stage.
func NewStage(renderer ports.Renderer, logger ports.Logger) *Stage {
	return &Stage{
		renderer: renderer,
		logger:   logger.WithComponent("contactsheet"),
	}
}

// Execute draws the assets in the given order, left to right then top to
// bottom. Vector and undecodable files get a placeholder tile.
func (s *Stage) Execute(ctx context.Context, input Input) (Result, error) {
	if len(input.Assets) == 0 {
		return Result{}, pipeline.NewError(pipeline.KindValidation, "no assets to draw")
	}
	cols := input.Columns
	if cols <= 0 {
		cols = DefaultColumns
	}
	cols = min(cols, len(input.Assets))
	rows := (len(input.Assets) + cols - 1) / cols

	width := Gap + cols*(Cell+Gap)
	height := Gap + rows*(Cell+LabelHeight+Gap)
	canvas := s.renderer.CreateCanvas(width, height, background)
	label := ports.TextStyle{FontSize: 12, Color: textColor, Align: ports.AlignCenter}

	for i, asset := range input.Assets {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		x := Gap + (i%cols)*(Cell+Gap)
		y := Gap + (i/cols)*(Cell+LabelHeight+Gap)

		canvas.DrawRect(x, y, Cell, Cell, color.White)
		if img, ok := s.thumbnail(asset, input.Files[asset.Name]); ok {
			canvas.DrawImageScaled(img, x+4, y+4, Cell-8, Cell-8)
		} else {
			canvas.DrawRect(x+4, y+4, Cell-8, Cell-8, vectorFill)
			canvas.DrawText(asset.MediaType, x+Cell/2, y+Cell/2, label)
		}
		canvas.DrawRectStroke(x, y, Cell, Cell, frame, 1)

		canvas.DrawText(truncate(asset.Name, 28), x+Cell/2, y+Cell+10, label)
		canvas.DrawText(fmt.Sprintf("%s · %dx%d · p%d", asset.Type, asset.Width, asset.Height, asset.Priority),
			x+Cell/2, y+Cell+26, label)
	}

	img := canvas.ToImage()
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return Result{}, fmt.Errorf("encode sheet: %w", err)
	}
	s.logger.Debug("Contact sheet %dx%d with %d assets", width, height, len(input.Assets))
	return Result{Image: img, PNG: data}, nil
}

func (s *Stage) thumbnail(asset pipeline.Asset, data []byte) (image.Image, bool) {
	if len(data) == 0 || asset.MediaType == "image/svg+xml" {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Debug("Thumbnail for %s not decoded: %v", asset.Name, err)
		return nil, false
	}
	// Large backgrounds are downscaled once instead of on every draw.
	if b := img.Bounds(); b.Dx() > 4*Cell || b.Dy() > 4*Cell {
		scale := float64(2*Cell) / float64(max(b.Dx(), b.Dy()))
		img = s.renderer.ResizeImage(img, max(1, int(float64(b.Dx())*scale)), max(1, int(float64(b.Dy())*scale)))
	}
	return img, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var _ pipeline.Stage[Input, Result] = (*Stage)(nil)
