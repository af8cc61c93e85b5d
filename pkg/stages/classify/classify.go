// Package classify implements the asset classification stage.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// Thresholds of the classification rules.
const (
	BackgroundMinSide  = 1000
	LogoMaxBytes       = 500_000
	IconMaxWidth       = 100
	IconMaxBytes       = 50_000
	RatioTolerance     = 0.2
	PriorityBackground = 1
	PriorityLogo       = 2
	PriorityDecoration = 3
	PriorityIcon       = 4
)

var logoRatios = []float64{1, 2}

// Categorize applies the ordered rules to a measured file. The first match wins.
func Categorize(width, height int, size int64, svg bool) (pipeline.AssetType, int) {
	switch {
	case width >= BackgroundMinSide && height >= BackgroundMinSide:
		return pipeline.AssetBackground, PriorityBackground
	case ratioNear(width, height) && size < LogoMaxBytes:
		return pipeline.AssetLogo, PriorityLogo
	case (width < IconMaxWidth || svg) && size < IconMaxBytes:
		return pipeline.AssetIcon, PriorityIcon
	default:
		return pipeline.AssetDecoration, PriorityDecoration
	}
}

func ratioNear(width, height int) bool {
	if height == 0 {
		return false
	}
	ratio := float64(width) / float64(height)
	for _, target := range logoRatios {
		if math.Abs(ratio-target) <= RatioTolerance {
			return true
		}
	}
	return false
}

// Classify measures one file and categorizes it.
func Classify(file pipeline.AssetFile) (pipeline.Asset, error) {
	w, h, err := Measure(file)
	if err != nil {
		return pipeline.Asset{}, err
	}
	assetType, priority := Categorize(w, h, file.Size(), isSVG(file))
	return pipeline.Asset{
		ID:           uuid.NewString(),
		Name:         file.Name,
		MediaType:    file.MediaType,
		Type:         assetType,
		Width:        w,
		Height:       h,
		Size:         file.Size(),
		AutoDetected: true,
		Priority:     priority,
	}, nil
}

// SortByPriority orders assets by ascending priority, keeping input order on ties.
func SortByPriority(assets []pipeline.Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].Priority < assets[j].Priority
	})
}

// Stage classifies asset batches.
type Stage struct {
	sink    ports.DebugSink
	logger  ports.Logger
	workers int
}

// NewStage creates a new classification stage.
func NewStage(sink ports.DebugSink, logger ports.Logger) *Stage {
	return &Stage{
		sink:    sink,
		logger:  logger.WithComponent("classify"),
		workers: runtime.NumCPU(),
	}
}

// Execute filters the batch by media type, decodes the remaining files
// concurrently and returns them sorted by priority. Files failing to decode are
// reported in Failed, or abort the whole batch when AbortOnError is set.
func (s *Stage) Execute(ctx context.Context, input pipeline.ClassifyInput) (pipeline.ClassifyResult, error) {
	valid, rejected := FilterValid(input.Files)
	for _, name := range rejected {
		s.logger.Debug("Rejected %s: media type not allowed", name)
	}
	s.logger.Debug("Classifying %d files with %d workers", len(valid), s.workers)

	slots := make([]*pipeline.Asset, len(valid))
	errs := make([]error, len(valid))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, file := range valid {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			asset, err := Classify(file)
			if err != nil {
				if input.AbortOnError {
					return err
				}
				errs[i] = err
				return nil
			}
			slots[i] = &asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.ClassifyResult{}, fmt.Errorf("classify batch: %w", err)
	}

	result := pipeline.ClassifyResult{Rejected: rejected}
	for i, slot := range slots {
		if slot != nil {
			result.Assets = append(result.Assets, *slot)
			continue
		}
		if result.Failed == nil {
			result.Failed = make(map[string]error)
		}
		result.Failed[valid[i].Name] = errs[i]
		s.logger.Warn("Skipped %s: %v", valid[i].Name, errs[i])
	}
	SortByPriority(result.Assets)

	if s.sink.Enabled() {
		if data, err := json.MarshalIndent(result.Assets, "", "  "); err == nil {
			s.sink.SaveClassification(data)
		}
	}

	s.logger.Debug("Classified %d assets, %d rejected, %d failed", len(result.Assets), len(result.Rejected), len(result.Failed))
	return result, nil
}

var _ pipeline.Stage[pipeline.ClassifyInput, pipeline.ClassifyResult] = (*Stage)(nil)
