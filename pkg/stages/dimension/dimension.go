// Package dimension resolves the effective poster dimensions.
package dimension

import (
	"context"
	"errors"
	"time"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// DefaultProbeTimeout bounds how long a natural-size probe may wait.
const DefaultProbeTimeout = 3 * time.Second

// Target owns the effective dimensions a probe may overwrite.
type Target interface {
	// Context is done once the owner has been torn down.
	Context() context.Context
	// InPreview reports whether the owner currently shows the preview.
	InPreview() bool
	// Dimensions returns the current effective dimensions.
	Dimensions() pipeline.Dimensions
	// SetDimensionsIfChanged stores d unless it equals the current value and
	// reports whether anything changed.
	SetDimensionsIfChanged(d pipeline.Dimensions, source pipeline.DimensionSource) bool
}

// Stage resolves dimensions at template load and probes auto-sized images in preview.
type Stage struct {
	prober  ports.ImageProber
	timeout time.Duration
	logger  ports.Logger
}

// NewStage creates a new dimension stage. A nil prober disables probing.
func NewStage(prober ports.ImageProber, timeout time.Duration, logger ports.Logger) *Stage {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Stage{
		prober:  prober,
		timeout: timeout,
		logger:  logger.WithComponent("dimension"),
	}
}

// Execute resolves the load-time dimensions: container CSS first, then the
// stored fallback. It fails with a validation error when neither is positive.
func (s *Stage) Execute(ctx context.Context, input pipeline.DimensionInput) (pipeline.DimensionResult, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.DimensionResult{}, err
	}

	d, selector, err := FromCSS(input.CSS)
	if err != nil {
		s.logger.Debug("CSS not parsed, using stored dimensions: %v", err)
	}
	if d.Valid() {
		s.logger.Debug("Dimensions %dx%d from %s", d.Width, d.Height, selector)
		return pipeline.DimensionResult{Dimensions: d, Source: pipeline.SourceCSS, Selector: selector}, nil
	}

	if input.Fallback.Valid() {
		s.logger.Debug("Dimensions %dx%d from template record", input.Fallback.Width, input.Fallback.Height)
		return pipeline.DimensionResult{Dimensions: input.Fallback, Source: pipeline.SourceDatabase}, nil
	}

	return pipeline.DimensionResult{}, pipeline.NewError(pipeline.KindValidation,
		"no positive dimensions: CSS has no sized container and stored size is %dx%d",
		input.Fallback.Width, input.Fallback.Height)
}

// Probe waits for the natural size of the auto-sized image in markup and
// applies it to target. It does nothing unless the markup flags an image and
// target is in preview. The wait ends at the probe timeout, when ctx is done
// or when target is torn down; a late result is discarded if target has
// left preview or been torn down by then. Probe reports whether the target's
// dimensions changed. Failures leave the current dimensions in place and are
// returned as decode errors.
func (s *Stage) Probe(ctx context.Context, target Target, markup, css string) (bool, error) {
	if s.prober == nil {
		return false, nil
	}
	if _, ok := FindAutoSizeImage(markup); !ok {
		return false, nil
	}
	if !target.InPreview() || target.Context().Err() != nil {
		return false, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(target.Context(), cancel)
	defer stop()

	d, err := s.prober.NaturalSize(probeCtx, markup, css, target.Dimensions())
	if target.Context().Err() != nil {
		s.logger.Debug("Probe result discarded: session ended")
		return false, nil
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Debug("Auto-size image did not load within %v", s.timeout)
		}
		return false, pipeline.WrapError(pipeline.KindDecode, err, "probe natural size")
	}
	if !target.InPreview() {
		s.logger.Debug("Probe result discarded: preview left")
		return false, nil
	}
	if !d.Valid() {
		return false, nil
	}

	changed := target.SetDimensionsIfChanged(d, pipeline.SourceImage)
	if changed {
		s.logger.Debug("Dimensions %dx%d from auto-size image", d.Width, d.Height)
	}
	return changed, nil
}

var _ pipeline.Stage[pipeline.DimensionInput, pipeline.DimensionResult] = (*Stage)(nil)
