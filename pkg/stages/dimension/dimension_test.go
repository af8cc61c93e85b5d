package dimension

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/postergen/pkg/adapters/logger"
	"github.com/user/postergen/pkg/mocks"
	"github.com/user/postergen/pkg/pipeline"
)

func TestFromCSS(t *testing.T) {
	tests := []struct {
		name         string
		css          string
		want         pipeline.Dimensions
		wantSelector string
	}{
		{
			name:         "poster container",
			css:          `.poster-container { width: 800px; height: 1200px; background: red; }`,
			want:         pipeline.Dimensions{Width: 800, Height: 1200},
			wantSelector: ".poster-container",
		},
		{
			name:         "priority order wins over document order",
			css:          `.poster { width: 500px; height: 500px; } .poster-container { width: 800px; height: 1200px; }`,
			want:         pipeline.Dimensions{Width: 800, Height: 1200},
			wantSelector: ".poster-container",
		},
		{
			name:         "class missing height is skipped",
			css:          `.poster-container { width: 800px; } .poster { width: 640px; height: 480px; }`,
			want:         pipeline.Dimensions{Width: 640, Height: 480},
			wantSelector: ".poster",
		},
		{
			name:         "declarations accumulate across rules",
			css:          `.canvas-container { width: 300px; } .canvas-container { height: 200px; }`,
			want:         pipeline.Dimensions{Width: 300, Height: 200},
			wantSelector: ".canvas-container",
		},
		{
			name:         "selector list and descendant",
			css:          `h1, body .template-container { WIDTH: 1080PX; height: 1350px !important; }`,
			want:         pipeline.Dimensions{Width: 1080, Height: 1350},
			wantSelector: ".template-container",
		},
		{
			name:         "nested in media query",
			css:          `@media print { .poster-root { width: 600px; height: 900px; } }`,
			want:         pipeline.Dimensions{Width: 600, Height: 900},
			wantSelector: ".poster-root",
		},
		{
			name: "non pixel units ignored",
			css:  `.poster-container { width: 100%; height: 50vh; }`,
		},
		{
			name: "zero size ignored",
			css:  `.poster-container { width: 0px; height: 0px; }`,
		},
		{
			name: "unrecognized class",
			css:  `.poster-container-inner { width: 800px; height: 1200px; }`,
		},
		{
			name: "empty",
			css:  ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, selector, err := FromCSS(tt.css)
			if err != nil {
				t.Fatalf("FromCSS() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FromCSS() = %+v, want %+v", got, tt.want)
			}
			if selector != tt.wantSelector {
				t.Errorf("selector = %q, want %q", selector, tt.wantSelector)
			}
		})
	}
}

func TestStage_Execute(t *testing.T) {
	tests := []struct {
		name       string
		input      pipeline.DimensionInput
		want       pipeline.Dimensions
		wantSource pipeline.DimensionSource
		wantErr    bool
	}{
		{
			name: "stored dimensions without container rule",
			input: pipeline.DimensionInput{
				CSS:      `body { margin: 0; } .title { font-size: 32px; }`,
				Fallback: pipeline.Dimensions{Width: 1080, Height: 1080},
			},
			want:       pipeline.Dimensions{Width: 1080, Height: 1080},
			wantSource: pipeline.SourceDatabase,
		},
		{
			name: "container rule overrides stored dimensions",
			input: pipeline.DimensionInput{
				CSS:      `.poster-container { width: 800px; height: 1200px; }`,
				Fallback: pipeline.Dimensions{Width: 1080, Height: 1080},
			},
			want:       pipeline.Dimensions{Width: 800, Height: 1200},
			wantSource: pipeline.SourceCSS,
		},
		{
			name: "nothing positive",
			input: pipeline.DimensionInput{
				CSS:      `.poster { width: auto; }`,
				Fallback: pipeline.Dimensions{Width: 0, Height: -1},
			},
			wantErr: true,
		},
	}

	stage := NewStage(nil, 0, logger.NewNoop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := stage.Execute(context.Background(), tt.input)
			if tt.wantErr {
				if !pipeline.IsKind(err, pipeline.KindValidation) {
					t.Fatalf("Execute() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if result.Dimensions != tt.want {
				t.Errorf("Dimensions = %+v, want %+v", result.Dimensions, tt.want)
			}
			if result.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", result.Source, tt.wantSource)
			}
		})
	}
}

func TestFindAutoSizeImage(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		wantSrc string
		wantOK  bool
	}{
		{"flagged", `<div><img src="logo.png"><img data-auto-size src="bg.jpg"></div>`, "bg.jpg", true},
		{"flag with value", `<img data-auto-size="true" src="a.png">`, "a.png", true},
		{"explicitly off", `<img data-auto-size="false" src="a.png">`, "", false},
		{"no flag", `<img src="a.png">`, "", false},
		{"not an image", `<div data-auto-size></div>`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, ok := FindAutoSizeImage(tt.markup)
			if ok != tt.wantOK || src != tt.wantSrc {
				t.Errorf("FindAutoSizeImage() = (%q, %v), want (%q, %v)", src, ok, tt.wantSrc, tt.wantOK)
			}
		})
	}
}

type fakeTarget struct {
	mu      sync.Mutex
	ctx     context.Context
	preview bool
	dims    pipeline.Dimensions
	sets    int
}

func (f *fakeTarget) Context() context.Context { return f.ctx }

func (f *fakeTarget) InPreview() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preview
}

func (f *fakeTarget) Dimensions() pipeline.Dimensions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dims
}

func (f *fakeTarget) SetDimensionsIfChanged(d pipeline.Dimensions, _ pipeline.DimensionSource) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dims == d {
		return false
	}
	f.dims = d
	f.sets++
	return true
}

const autoSizeMarkup = `<div class="poster"><img data-auto-size src="affiche.png"></div>`

func TestStage_ProbeAppliesNaturalSize(t *testing.T) {
	prober := &mocks.ImageProber{
		NaturalSizeFunc: func(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error) {
			return pipeline.Dimensions{Width: 1240, Height: 1754}, nil
		},
	}
	target := &fakeTarget{ctx: context.Background(), preview: true, dims: pipeline.Dimensions{Width: 1080, Height: 1080}}
	stage := NewStage(prober, time.Second, logger.NewNoop())

	changed, err := stage.Probe(context.Background(), target, autoSizeMarkup, "")
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if !changed {
		t.Error("Probe() changed = false, want true")
	}
	if target.dims != (pipeline.Dimensions{Width: 1240, Height: 1754}) {
		t.Errorf("dims = %+v", target.dims)
	}

	// Same size again is a no-op.
	changed, _ = stage.Probe(context.Background(), target, autoSizeMarkup, "")
	if changed || target.sets != 1 {
		t.Errorf("second probe changed = %v, sets = %d, want no update", changed, target.sets)
	}
}

func TestStage_ProbeSkips(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		preview bool
		size    pipeline.Dimensions
	}{
		{"no flagged image", `<img src="a.png">`, true, pipeline.Dimensions{Width: 10, Height: 10}},
		{"edit mode", autoSizeMarkup, false, pipeline.Dimensions{Width: 10, Height: 10}},
		{"zero natural size", autoSizeMarkup, true, pipeline.Dimensions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &mocks.ImageProber{
				NaturalSizeFunc: func(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error) {
					return tt.size, nil
				},
			}
			initial := pipeline.Dimensions{Width: 1080, Height: 1080}
			target := &fakeTarget{ctx: context.Background(), preview: tt.preview, dims: initial}

			changed, err := NewStage(prober, time.Second, logger.NewNoop()).Probe(context.Background(), target, tt.markup, "")
			if err != nil {
				t.Fatalf("Probe() error: %v", err)
			}
			if changed || target.dims != initial {
				t.Errorf("Probe() changed dims to %+v", target.dims)
			}
		})
	}
}

func TestStage_ProbeFailureKeepsDimensions(t *testing.T) {
	prober := &mocks.ImageProber{
		NaturalSizeFunc: func(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error) {
			return pipeline.Dimensions{}, errors.New("image failed to load")
		},
	}
	initial := pipeline.Dimensions{Width: 1080, Height: 1080}
	target := &fakeTarget{ctx: context.Background(), preview: true, dims: initial}

	changed, err := NewStage(prober, time.Second, logger.NewNoop()).Probe(context.Background(), target, autoSizeMarkup, "")
	if !pipeline.IsKind(err, pipeline.KindDecode) {
		t.Errorf("Probe() error = %v, want decode error", err)
	}
	if changed || target.dims != initial {
		t.Errorf("dims = %+v, want %+v", target.dims, initial)
	}
}

func TestStage_ProbeTimeout(t *testing.T) {
	prober := &mocks.ImageProber{
		NaturalSizeFunc: func(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error) {
			<-ctx.Done()
			return pipeline.Dimensions{}, ctx.Err()
		},
	}
	target := &fakeTarget{ctx: context.Background(), preview: true, dims: pipeline.Dimensions{Width: 1, Height: 1}}

	start := time.Now()
	_, err := NewStage(prober, 20*time.Millisecond, logger.NewNoop()).Probe(context.Background(), target, autoSizeMarkup, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Probe() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Probe() took %v, want bounded by timeout", elapsed)
	}
}

func TestStage_ProbeDiscardedAfterTeardown(t *testing.T) {
	sessionCtx, teardown := context.WithCancel(context.Background())
	prober := &mocks.ImageProber{
		NaturalSizeFunc: func(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error) {
			teardown()
			<-ctx.Done()
			// A late result arrives after the owner is gone.
			return pipeline.Dimensions{Width: 500, Height: 500}, nil
		},
	}
	initial := pipeline.Dimensions{Width: 1080, Height: 1080}
	target := &fakeTarget{ctx: sessionCtx, preview: true, dims: initial}

	changed, err := NewStage(prober, time.Minute, logger.NewNoop()).Probe(context.Background(), target, autoSizeMarkup, "")
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if changed || target.dims != initial {
		t.Errorf("late result applied: %+v", target.dims)
	}
}

func TestStage_ProbeDiscardedAfterLeavingPreview(t *testing.T) {
	target := &fakeTarget{ctx: context.Background(), preview: true, dims: pipeline.Dimensions{Width: 1080, Height: 1080}}
	prober := &mocks.ImageProber{
		NaturalSizeFunc: func(ctx context.Context, html, css string, viewport pipeline.Dimensions) (pipeline.Dimensions, error) {
			target.mu.Lock()
			target.preview = false
			target.mu.Unlock()
			return pipeline.Dimensions{Width: 500, Height: 500}, nil
		},
	}

	changed, err := NewStage(prober, time.Second, logger.NewNoop()).Probe(context.Background(), target, autoSizeMarkup, "")
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if changed {
		t.Error("result applied after leaving preview")
	}
}
