// Package ports defines the capabilities the poster pipeline depends on.
package ports

import (
	"context"
	"html"
	"image"

	"github.com/user/postergen/pkg/pipeline"
)

// Rasterizer renders markup offscreen and returns a bitmap.
type Rasterizer interface {
	// RenderMarkupOffscreen renders html styled by css in a viewport of
	// width x height CSS pixels and captures the element matching the capture
	// root selector. scale is the device pixel ratio, so the returned image
	// measures width*scale x height*scale. It returns an error wrapping
	// pipeline.ErrCaptureTargetMissing when the capture root is absent.
	RenderMarkupOffscreen(ctx context.Context, req RenderRequest) (image.Image, error)
}

// RenderRequest describes one offscreen render.
type RenderRequest struct {
	HTML     string
	CSS      string
	Width    int
	Height   int
	Scale    float64
	Selector string // capture root, e.g. "#poster-capture"
}

// Document assembles the standalone page loaded by the browser.
func (r RenderRequest) Document() string {
	return Page(r.HTML, r.CSS, "")
}

// Page wraps body markup and styles in a minimal UTF-8 document.
func Page(body, css, title string) string {
	return "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" + html.EscapeString(title) +
		"</title>\n<style>\n" + css + "\n</style>\n</head>\n<body>\n" + body + "\n</body>\n</html>\n"
}

// ImageProber waits for the natural size of an auto-sized image in rendered markup.
type ImageProber interface {
	// NaturalSize renders html with css and waits until the first image flagged
	// for automatic sizing has loaded. It tolerates the image appearing late and
	// returns once ctx is done. A zero Dimensions with a nil error means the
	// image loaded without usable dimensions.
	NaturalSize(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error)
}
