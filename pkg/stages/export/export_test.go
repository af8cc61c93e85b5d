package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/user/postergen/pkg/adapters/filedownloader"
	"github.com/user/postergen/pkg/adapters/logger"
	"github.com/user/postergen/pkg/adapters/osfilesystem"
	"github.com/user/postergen/pkg/mocks"
	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

type fakeSession struct {
	mu   sync.Mutex
	mode pipeline.Mode
}

func (f *fakeSession) UserID() string { return "user-1" }

func (f *fakeSession) Mode() pipeline.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *fakeSession) Transition(from, to pipeline.Mode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != from {
		return false
	}
	f.mode = to
	return true
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	session    *fakeSession
	rasterizer *mocks.Rasterizer
	renderer   *mocks.Renderer
	records    *mocks.VisualRecordStore
	downloader *mocks.Downloader
	sink       *mocks.DebugSink
	log        *mocks.Logger
}

func newFixture() *fixture {
	return &fixture{
		session:    &fakeSession{mode: pipeline.ModePreview},
		rasterizer: mocks.NewRasterizer(),
		renderer:   &mocks.Renderer{},
		records:    &mocks.VisualRecordStore{},
		downloader: &mocks.Downloader{},
		sink:       mocks.NewDebugSink(true),
		log:        mocks.NewLogger(),
	}
}

func (f *fixture) stage() *Stage {
	return NewStage(f.session, f.rasterizer, f.renderer, f.records, f.downloader, f.sink, f.log,
		Options{Now: func() time.Time { return fixedNow }})
}

func sampleInput() pipeline.ExportInput {
	return pipeline.ExportInput{
		Template: pipeline.TemplateDefinition{
			ID:            "tpl-1",
			Name:          "Annonce Générale",
			HTMLStructure: "<h1>{{titre}}</h1>",
			CSSStyles:     ".poster { color: red; }",
		},
		Markup:     "<h1>Réunion</h1>",
		Values:     pipeline.FormState{"titre": "Réunion"},
		Dimensions: pipeline.Dimensions{Width: 1080, Height: 1080},
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"aeemci", "Annonce Générale", "aeemci-annonce-générale-1709287200000.png"},
		{"aeemci", "Flyer  Sortie\tDétente", "aeemci-flyer-sortie-détente-1709287200000.png"},
		{"brand", "simple", "brand-simple-1709287200000.png"},
		{"aeemci", "Gala 2024/2025", "aeemci-gala-2024-2025-1709287200000.png"},
		{"aeemci", `A\B:C*D?"E"<F>|G`, "aeemci-a-b-c-d--e--f--g-1709287200000.png"},
	}
	for _, tt := range tests {
		if got := Filename(tt.prefix, tt.name, fixedNow); got != tt.want {
			t.Errorf("Filename(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}

	pattern := regexp.MustCompile(`^aeemci-annonce-générale-\d{13}\.png$`)
	if got := Filename("aeemci", "Annonce Générale", time.Now()); !pattern.MatchString(got) {
		t.Errorf("Filename() = %q, want match %s", got, pattern)
	}
}

func TestStage_Execute(t *testing.T) {
	f := newFixture()
	stage := f.stage()

	result, err := stage.Execute(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	stage.Flush()

	if result.Skipped {
		t.Fatal("Execute() skipped")
	}
	if result.Filename != "aeemci-annonce-générale-1709287200000.png" {
		t.Errorf("Filename = %q", result.Filename)
	}
	if got := result.Image.Bounds(); got.Dx() != 2160 || got.Dy() != 2160 {
		t.Errorf("image = %dx%d, want 2160x2160", got.Dx(), got.Dy())
	}
	if f.session.Mode() != pipeline.ModeDone {
		t.Errorf("mode = %s, want done", f.session.Mode())
	}

	if len(f.rasterizer.Calls) != 1 {
		t.Fatalf("rasterizer calls = %d, want 1", len(f.rasterizer.Calls))
	}
	req := f.rasterizer.Calls[0]
	if req.Width != 1080 || req.Height != 1080 || req.Scale != 2 || req.Selector != "#poster-capture" {
		t.Errorf("render request = %+v", req)
	}
	if !strings.Contains(req.HTML, "<h1>Réunion</h1>") || !strings.Contains(req.CSS, ".poster { color: red; }") {
		t.Errorf("render request lost template content: %+v", req)
	}

	records := f.records.Records()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	want := pipeline.GeneratedVisualRecord{
		ID:           records[0].ID,
		TemplateID:   "tpl-1",
		UserID:       "user-1",
		Content:      pipeline.FormState{"titre": "Réunion"},
		FormatExport: "png",
		Width:        1080,
		Height:       1080,
		FileSize:     int64(len("encoded-image")),
		CreatedAt:    fixedNow,
	}
	if diff := cmp.Diff(want, records[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	if f.downloader.Count() != 1 || f.downloader.Downloads[0].Filename != result.Filename {
		t.Errorf("downloads = %+v", f.downloader.Downloads)
	}
	if !strings.Contains(f.sink.MarkupString(), `<div id="poster-capture">`) {
		t.Error("normalized markup not saved to debug sink")
	}
}

func TestStage_Execute_CaptureFailures(t *testing.T) {
	tests := []struct {
		name      string
		renderErr error
		encodeErr error
	}{
		{name: "capture root missing", renderErr: fmt.Errorf("query: %w", pipeline.ErrCaptureTargetMissing)},
		{name: "rasterizer throws", renderErr: errors.New("browser crashed")},
		{name: "encoder fails", encodeErr: errors.New("bad bitmap")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.renderErr != nil {
				f.rasterizer.RenderFunc = func(ctx context.Context, req ports.RenderRequest) (image.Image, error) {
					return nil, tt.renderErr
				}
			}
			if tt.encodeErr != nil {
				f.renderer.EncodeImageFunc = func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
					return nil, tt.encodeErr
				}
			}
			stage := f.stage()

			_, err := stage.Execute(context.Background(), sampleInput())
			stage.Flush()

			if !pipeline.IsKind(err, pipeline.KindExport) {
				t.Errorf("Execute() error = %v, want export error", err)
			}
			if f.session.Mode() != pipeline.ModePreview {
				t.Errorf("mode = %s, want preview", f.session.Mode())
			}
			if f.records.Attempts != 0 {
				t.Errorf("record attempts = %d, want 0", f.records.Attempts)
			}
			if f.downloader.Count() != 0 {
				t.Errorf("downloads = %d, want 0", f.downloader.Count())
			}
		})
	}
}

func TestStage_Execute_SlashInTemplateName(t *testing.T) {
	dir := t.TempDir()
	f := newFixture()
	stage := NewStage(f.session, f.rasterizer, f.renderer, f.records,
		filedownloader.New(dir, osfilesystem.New()), f.sink, logger.NewNoop(),
		Options{Now: func() time.Time { return fixedNow }})

	input := sampleInput()
	input.Template.Name = "Gala 2024/2025"
	result, err := stage.Execute(context.Background(), input)
	stage.Flush()
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	want := filepath.Join(dir, "aeemci-gala-2024-2025-1709287200000.png")
	if result.Location != want {
		t.Errorf("Location = %q, want %q", result.Location, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("poster not written: %v", err)
	}
	if string(data) != "encoded-image" {
		t.Errorf("poster content = %q", data)
	}
	if n := len(f.records.Records()); n != 1 {
		t.Errorf("records = %d, want 1", n)
	}
}

func TestStage_Execute_DownloadFailureLeavesNoRecord(t *testing.T) {
	f := newFixture()
	f.downloader.DownloadFunc = func(ctx context.Context, filename string, data []byte) (string, error) {
		return "", errors.New("disk full")
	}
	stage := f.stage()

	_, err := stage.Execute(context.Background(), sampleInput())
	stage.Flush()

	if !pipeline.IsKind(err, pipeline.KindExport) {
		t.Errorf("Execute() error = %v, want export error", err)
	}
	if f.session.Mode() != pipeline.ModePreview {
		t.Errorf("mode = %s, want preview", f.session.Mode())
	}
	if f.records.Attempts != 0 {
		t.Errorf("record attempts = %d, want 0", f.records.Attempts)
	}
}

func TestStage_Execute_CaptureTargetMissingIsDetectable(t *testing.T) {
	f := newFixture()
	f.rasterizer.RenderFunc = func(ctx context.Context, req ports.RenderRequest) (image.Image, error) {
		return nil, pipeline.ErrCaptureTargetMissing
	}
	_, err := f.stage().Execute(context.Background(), sampleInput())
	if !errors.Is(err, pipeline.ErrCaptureTargetMissing) {
		t.Errorf("Execute() error = %v, want ErrCaptureTargetMissing in chain", err)
	}
}

func TestStage_Execute_RecordFailureDoesNotBlockDownload(t *testing.T) {
	f := newFixture()
	f.records.InsertFunc = func(ctx context.Context, rec pipeline.GeneratedVisualRecord) error {
		return errors.New("connection refused")
	}
	stage := f.stage()

	result, err := stage.Execute(context.Background(), sampleInput())
	stage.Flush()
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if f.downloader.Count() != 1 || result.Location == "" {
		t.Errorf("download missing: %+v", result)
	}
	if len(f.records.Records()) != 0 {
		t.Error("failed record reported as stored")
	}
	if warns := f.log.Entries(ports.LevelWarn); len(warns) != 1 || !strings.Contains(warns[0].Message, "persistence") {
		t.Errorf("warnings = %+v, want one persistence warning", warns)
	}
}

func TestStage_Execute_NotReentrant(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	release := make(chan struct{})
	f.rasterizer.RenderFunc = func(ctx context.Context, req ports.RenderRequest) (image.Image, error) {
		close(started)
		<-release
		return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
	}
	stage := f.stage()

	type outcome struct {
		result pipeline.ExportResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := stage.Execute(context.Background(), sampleInput())
		first <- outcome{r, err}
	}()

	<-started
	second, err := stage.Execute(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("second Execute() error: %v", err)
	}
	if !second.Skipped {
		t.Error("second Execute() was not skipped")
	}
	close(release)

	out := <-first
	stage.Flush()
	if out.err != nil || out.result.Skipped {
		t.Fatalf("first Execute() = %+v, %v", out.result, out.err)
	}
	if f.rasterizer.CallCount() != 1 {
		t.Errorf("rasterizations = %d, want 1", f.rasterizer.CallCount())
	}
	if n := len(f.records.Records()); n != 1 {
		t.Errorf("records = %d, want 1", n)
	}
}

func TestStage_Execute_RequiresPreview(t *testing.T) {
	f := newFixture()
	f.session.mode = pipeline.ModeEdit

	_, err := f.stage().Execute(context.Background(), sampleInput())
	if !pipeline.IsKind(err, pipeline.KindValidation) {
		t.Errorf("Execute() error = %v, want validation error", err)
	}
	if f.rasterizer.CallCount() != 0 {
		t.Error("rasterizer called outside preview")
	}
	if f.session.Mode() != pipeline.ModeEdit {
		t.Errorf("mode = %s, want edit", f.session.Mode())
	}
}

func TestStage_Execute_InvalidDimensions(t *testing.T) {
	f := newFixture()
	input := sampleInput()
	input.Dimensions = pipeline.Dimensions{Width: 0, Height: 1080}

	_, err := f.stage().Execute(context.Background(), input)
	if !pipeline.IsKind(err, pipeline.KindValidation) {
		t.Errorf("Execute() error = %v, want validation error", err)
	}
	if f.session.Mode() != pipeline.ModePreview {
		t.Errorf("mode = %s, want preview", f.session.Mode())
	}
}

func TestCaptureRequest(t *testing.T) {
	req := CaptureRequest("<p>x</p>", ".a{}", pipeline.Dimensions{Width: 800, Height: 1200}, 2)

	if req.HTML != `<div id="poster-capture"><p>x</p></div>` {
		t.Errorf("HTML = %q", req.HTML)
	}
	for _, want := range []string{".a{}", "width: 800px !important", "height: 1200px !important", "transform: none !important", "#poster-capture > *"} {
		if !strings.Contains(req.CSS, want) {
			t.Errorf("CSS missing %q", want)
		}
	}
	if !strings.HasPrefix(req.Document(), "<!DOCTYPE html>") {
		t.Error("Document() is not a full page")
	}
}
