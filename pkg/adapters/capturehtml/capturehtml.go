// Package capturehtml renders poster markup in headless Chrome.
//
// Every call starts its own browser, loads the page from a temporary file
// and releases both on return, whatever the outcome.
package capturehtml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/user/postergen/pkg/adapters/chromebrowser"
	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// PollInterval is how often NaturalSize checks the flagged image.
const PollInterval = 100 * time.Millisecond

// Capturer implements ports.Rasterizer and ports.ImageProber with chromedp.
type Capturer struct {
	browser chromebrowser.Options
}

// New creates a new Capturer.
func New(opts chromebrowser.Options) *Capturer {
	return &Capturer{browser: opts}
}

var (
	_ ports.Rasterizer  = (*Capturer)(nil)
	_ ports.ImageProber = (*Capturer)(nil)
)

// waitImages resolves once every <img> has finished loading or failed.
const waitImages = `Promise.all(Array.from(document.images).map(img => img.complete
  ? Promise.resolve()
  : new Promise(r => { img.addEventListener('load', r); img.addEventListener('error', r); })
)).then(() => true)`

// RenderMarkupOffscreen captures the element matching req.Selector at a
// device scale factor of req.Scale.
func (c *Capturer) RenderMarkupOffscreen(ctx context.Context, req ports.RenderRequest) (image.Image, error) {
	scale := req.Scale
	if scale <= 0 {
		scale = 1
	}
	selector := req.Selector
	if selector == "" {
		selector = "body"
	}

	browserCtx, release, err := c.open(ctx, req.Document())
	if err != nil {
		return nil, err
	}
	defer release()

	var loaded, found bool
	if err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(req.Width), int64(req.Height), chromedp.EmulateScale(scale)),
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(waitImages, &loaded, awaitPromise),
		chromedp.Evaluate(fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector)), &found),
	); err != nil {
		return nil, fmt.Errorf("load capture page: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("query %s: %w", selector, pipeline.ErrCaptureTargetMissing)
	}

	var buf []byte
	if err := chromedp.Run(browserCtx, chromedp.Screenshot(selector, &buf, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

type naturalSize struct {
	Ready  bool `json:"ready"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
}

const probeImage = `(() => {
  const img = document.querySelector('img[data-auto-size]:not([data-auto-size="false"])');
  if (!img || !img.complete) return {ready: false, width: 0, height: 0};
  return {ready: true, width: img.naturalWidth, height: img.naturalHeight};
})()`

// NaturalSize polls the first auto-sized image until it has loaded or ctx is done.
func (c *Capturer) NaturalSize(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error) {
	browserCtx, release, err := c.open(ctx, ports.Page(html, css, ""))
	if err != nil {
		return pipeline.Dimensions{}, err
	}
	defer release()

	if viewport.Valid() {
		if err := chromedp.Run(browserCtx, chromedp.EmulateViewport(int64(viewport.Width), int64(viewport.Height))); err != nil {
			return pipeline.Dimensions{}, fmt.Errorf("set viewport: %w", err)
		}
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		var size naturalSize
		if err := chromedp.Run(browserCtx, chromedp.Evaluate(probeImage, &size)); err != nil {
			if ctx.Err() != nil {
				return pipeline.Dimensions{}, ctx.Err()
			}
			return pipeline.Dimensions{}, fmt.Errorf("probe image: %w", err)
		}
		if size.Ready {
			return pipeline.Dimensions{Width: size.Width, Height: size.Height}, nil
		}
		select {
		case <-ctx.Done():
			return pipeline.Dimensions{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// open writes doc to a temporary file and navigates a fresh browser to it.
// release closes the browser and removes the file.
func (c *Capturer) open(ctx context.Context, doc string) (context.Context, func(), error) {
	f, err := os.CreateTemp("", "postergen-*.html")
	if err != nil {
		return nil, nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	_, werr := f.WriteString(doc)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(path)
		return nil, nil, fmt.Errorf("write temp file: %w", firstErr(werr, cerr))
	}

	allocCtx, allocCancel, err := chromebrowser.NewAllocator(ctx, c.browser)
	if err != nil {
		os.Remove(path)
		return nil, nil, err
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	release := func() {
		browserCancel()
		allocCancel()
		os.Remove(path)
	}

	if err := chromedp.Run(browserCtx, chromedp.Navigate("file://"+path)); err != nil {
		release()
		return nil, nil, fmt.Errorf("navigate: %w", err)
	}
	return browserCtx, release, nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
