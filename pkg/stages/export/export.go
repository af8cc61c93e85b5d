// Package export implements the poster export stage.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// Defaults for Options.
const (
	DefaultBrandPrefix   = "aeemci"
	DefaultScale         = 2.0
	DefaultRecordTimeout = 5 * time.Second
)

// Session is the editing session an export runs in.
type Session interface {
	// UserID returns the authenticated user's id.
	UserID() string
	// Mode returns the current state machine mode.
	Mode() pipeline.Mode
	// Transition moves from one mode to another and reports whether the
	// current mode was from.
	Transition(from, to pipeline.Mode) bool
}

// Options configures the export stage.
type Options struct {
	BrandPrefix   string
	Scale         float64
	RecordTimeout time.Duration
	// Now is the clock used for filenames and record timestamps.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.BrandPrefix == "" {
		o.BrandPrefix = DefaultBrandPrefix
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.RecordTimeout <= 0 {
		o.RecordTimeout = DefaultRecordTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Stage captures the rendered poster, encodes it, records it and hands it to the user.
type Stage struct {
	session    Session
	rasterizer ports.Rasterizer
	renderer   ports.Renderer
	records    ports.VisualRecordStore
	downloader ports.Downloader
	sink       ports.DebugSink
	logger     ports.Logger
	opts       Options

	pending sync.WaitGroup
}

// NewStage creates an export stage bound to one session.
func NewStage(
	session Session,
	rasterizer ports.Rasterizer,
	renderer ports.Renderer,
	records ports.VisualRecordStore,
	downloader ports.Downloader,
	sink ports.DebugSink,
	logger ports.Logger,
	opts Options,
) *Stage {
	return &Stage{
		session:    session,
		rasterizer: rasterizer,
		renderer:   renderer,
		records:    records,
		downloader: downloader,
		sink:       sink,
		logger:     logger.WithComponent("export"),
		opts:       opts.withDefaults(),
	}
}

// Execute exports the poster. It must be called in preview mode. A call made
// while another export of the same session is generating is ignored and
// returns a result with Skipped set. On any failure the session returns to
// preview and no record is written.
func (s *Stage) Execute(ctx context.Context, input pipeline.ExportInput) (pipeline.ExportResult, error) {
	if !s.session.Transition(pipeline.ModePreview, pipeline.ModeGenerating) {
		if s.session.Mode() == pipeline.ModeGenerating {
			s.logger.Debug("Export already in progress, request ignored")
			return pipeline.ExportResult{Skipped: true}, nil
		}
		return pipeline.ExportResult{}, pipeline.NewError(pipeline.KindValidation,
			"export requires preview mode, session is in %s", s.session.Mode())
	}

	result, err := s.generate(ctx, input)
	if err != nil {
		s.session.Transition(pipeline.ModeGenerating, pipeline.ModePreview)
		return pipeline.ExportResult{}, err
	}
	s.session.Transition(pipeline.ModeGenerating, pipeline.ModeDone)
	return result, nil
}

func (s *Stage) generate(ctx context.Context, input pipeline.ExportInput) (pipeline.ExportResult, error) {
	dims := input.Dimensions
	if !dims.Valid() {
		return pipeline.ExportResult{}, pipeline.NewError(pipeline.KindValidation,
			"cannot export at %dx%d", dims.Width, dims.Height)
	}

	now := s.opts.Now()
	filename := Filename(s.opts.BrandPrefix, input.Template.Name, now)

	// Step 1: normalize the capture subtree
	req := CaptureRequest(input.Markup, input.Template.CSSStyles, dims, s.opts.Scale)
	if s.sink.Enabled() {
		s.sink.SaveMarkup([]byte(req.Document()))
		if data, err := json.MarshalIndent(input.Values, "", "  "); err == nil {
			s.sink.SaveFormState(data)
		}
	}

	// Step 2: rasterize
	s.logger.Debug("Rasterizing %dx%d at %.0fx", dims.Width, dims.Height, s.opts.Scale)
	img, err := s.rasterizer.RenderMarkupOffscreen(ctx, req)
	if err != nil {
		if errors.Is(err, pipeline.ErrCaptureTargetMissing) {
			return pipeline.ExportResult{}, pipeline.WrapError(pipeline.KindExport, err, "locate capture root")
		}
		return pipeline.ExportResult{}, pipeline.WrapError(pipeline.KindExport, err, "rasterize poster")
	}
	if s.sink.Enabled() {
		s.sink.SaveCapture(img)
	}

	// Step 3: encode
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return pipeline.ExportResult{}, pipeline.WrapError(pipeline.KindExport, err, "encode PNG")
	}
	if len(data) == 0 {
		return pipeline.ExportResult{}, pipeline.NewError(pipeline.KindExport, "encode PNG: empty output")
	}

	// Step 4: download
	location, err := s.downloader.Download(ctx, filename, data)
	if err != nil {
		return pipeline.ExportResult{}, pipeline.WrapError(pipeline.KindExport, err, "download %s", filename)
	}
	s.logger.Info("Poster saved to %s (%d bytes)", location, len(data))

	record := pipeline.GeneratedVisualRecord{
		ID:           uuid.NewString(),
		TemplateID:   input.Template.ID,
		UserID:       s.session.UserID(),
		Content:      input.Values.Clone(),
		FormatExport: pipeline.FormatPNG,
		Width:        dims.Width,
		Height:       dims.Height,
		FileSize:     int64(len(data)),
		CreatedAt:    now.UTC(),
	}

	// Step 5: best-effort record
	s.persist(ctx, record)

	return pipeline.ExportResult{
		Filename: filename,
		Location: location,
		Image:    img,
		Data:     data,
		Record:   record,
	}, nil
}

// persist writes the record in the background. Failures are only logged.
func (s *Stage) persist(ctx context.Context, record pipeline.GeneratedVisualRecord) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RecordTimeout)
		defer cancel()
		if err := s.records.InsertGeneratedVisual(writeCtx, record); err != nil {
			s.logger.Warn("Generated visual not recorded: %v", pipeline.WrapError(pipeline.KindPersistence, err, "insert record %s", record.ID))
			return
		}
		s.logger.Debug("Recorded generated visual %s", record.ID)
	}()
}

// Flush waits for background record writes to finish.
func (s *Stage) Flush() {
	s.pending.Wait()
}

var whitespace = regexp.MustCompile(`\s+`)

// Filename builds "<prefix>-<name>-<unix ms>.png". The template name is lower-cased
// and whitespace runs become hyphens. Path separators and other characters that
// are not allowed in file names also become hyphens.
func Filename(prefix, templateName string, t time.Time) string {
	slug := whitespace.ReplaceAllString(strings.ToLower(templateName), "-")
	slug = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '-'
		}
		return r
	}, slug)
	return fmt.Sprintf("%s-%s-%d.png", prefix, slug, t.UnixMilli())
}

var _ pipeline.Stage[pipeline.ExportInput, pipeline.ExportResult] = (*Stage)(nil)
