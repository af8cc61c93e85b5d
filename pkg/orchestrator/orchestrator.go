// Package orchestrator runs the poster pipeline end to end.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
	"github.com/user/postergen/pkg/session"
	"github.com/user/postergen/pkg/stages/dimension"
	"github.com/user/postergen/pkg/stages/export"
	"github.com/user/postergen/pkg/stages/formula"
	"github.com/user/postergen/pkg/stages/interpolate"
)

// DefaultHistoryLimit is the number of records History returns by default.
const DefaultHistoryLimit = 20

// Config contains the tunables of a run.
type Config struct {
	BrandPrefix   string
	Scale         float64
	ProbeTimeout  time.Duration
	RecordTimeout time.Duration
	HistoryLimit  int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BrandPrefix:   export.DefaultBrandPrefix,
		Scale:         export.DefaultScale,
		ProbeTimeout:  dimension.DefaultProbeTimeout,
		RecordTimeout: export.DefaultRecordTimeout,
		HistoryLimit:  DefaultHistoryLimit,
	}
}

// Deps are the capabilities the orchestrator wires into the stages.
type Deps struct {
	Templates  ports.TemplateStore
	Records    ports.VisualRecordStore
	Auth       ports.AuthClient
	Rasterizer ports.Rasterizer
	Prober     ports.ImageProber
	Renderer   ports.Renderer
	Downloader ports.Downloader
	Sink       ports.DebugSink
	Logger     ports.Logger
}

// Orchestrator coordinates the execution of all pipeline stages.
type Orchestrator struct {
	deps   Deps
	config Config
	now    func() time.Time
}

// New creates a new Orchestrator.
func New(deps Deps, config Config) *Orchestrator {
	return &Orchestrator{deps: deps, config: config, now: time.Now}
}

// RenderRequest selects a template and the user's form input.
type RenderRequest struct {
	// Template is rendered as given when set; otherwise TemplateID is loaded from the store.
	Template   *pipeline.TemplateDefinition
	TemplateID string
	Values     map[string]string
}

// RenderResult describes a completed run.
type RenderResult struct {
	Template        pipeline.TemplateDefinition
	Export          pipeline.ExportResult
	Values          pipeline.FormState
	Markup          string
	Dimensions      pipeline.Dimensions
	DimensionSource pipeline.DimensionSource
	FormulaPasses   int
	Cyclic          []string
}

// Run loads the template into a fresh session, applies the values, derives
// formula fields, renders the preview and exports it.
func (o *Orchestrator) Run(ctx context.Context, req RenderRequest) (RenderResult, error) {
	log := o.deps.Logger
	log.Info("Starting pipeline")

	tpl, err := o.loadTemplate(ctx, req)
	if err != nil {
		log.Error("Failed to load template: %s", err)
		return RenderResult{}, err
	}
	log.Info("Template loaded: %s", tpl.Name)

	sess := session.New(o.deps.Auth, log)
	if err := sess.Initialize(ctx); err != nil {
		log.Error("Failed to start session: %s", err)
		return RenderResult{}, fmt.Errorf("start session: %w", err)
	}
	defer sess.Teardown()

	// 1. Dimensions at template load
	dimStage := dimension.NewStage(o.deps.Prober, o.config.ProbeTimeout, log)
	dims, err := dimStage.Execute(ctx, pipeline.DimensionInput{CSS: tpl.CSSStyles, Fallback: tpl.FallbackDimensions()})
	if err != nil {
		log.Error("Failed to resolve dimensions: %s", err)
		return RenderResult{}, fmt.Errorf("dimension stage: %w", err)
	}
	log.Info("Dimensions resolved: %dx%d from %s", dims.Dimensions.Width, dims.Dimensions.Height, dims.Source)
	if err := sess.LoadTemplate(*tpl, dims); err != nil {
		return RenderResult{}, fmt.Errorf("load template: %w", err)
	}

	// 2. User input
	if err := applyValues(sess, req.Values); err != nil {
		log.Error("Invalid form input: %s", err)
		return RenderResult{}, err
	}

	// 3. Derived fields
	formulas, err := formula.NewStage(log).Execute(ctx, pipeline.FormulaInput{Fields: tpl.FieldSchema, Values: sess.Values()})
	if err != nil {
		return RenderResult{}, fmt.Errorf("formula stage: %w", err)
	}
	sess.ApplyUpdates(formulas.Updates)
	if missing := sess.MissingRequired(); len(missing) > 0 {
		err := pipeline.NewError(pipeline.KindValidation, "required fields are empty: %v", missing)
		log.Error("Invalid form input: %s", err)
		return RenderResult{}, err
	}

	// 4. Markup
	values := sess.Values()
	markup, err := interpolate.NewStage(log).Execute(ctx, pipeline.InterpolateInput{HTML: tpl.HTMLStructure, Values: values})
	if err != nil {
		return RenderResult{}, fmt.Errorf("interpolate stage: %w", err)
	}

	// 5. Preview, with the auto-size probe
	if err := sess.Preview(); err != nil {
		return RenderResult{}, fmt.Errorf("enter preview: %w", err)
	}
	if changed, err := dimStage.Probe(ctx, sess, markup.HTML, tpl.CSSStyles); err != nil {
		log.Warn("Image size probe failed, keeping %dx%d: %s", sess.Dimensions().Width, sess.Dimensions().Height, err)
	} else if changed {
		log.Info("Dimensions resolved: %dx%d from %s", sess.Dimensions().Width, sess.Dimensions().Height, sess.DimensionSource())
	}

	// 6. Export
	exporter := export.NewStage(sess, o.deps.Rasterizer, o.deps.Renderer, o.deps.Records, o.deps.Downloader,
		o.deps.Sink, log, export.Options{
			BrandPrefix:   o.config.BrandPrefix,
			Scale:         o.config.Scale,
			RecordTimeout: o.config.RecordTimeout,
			Now:           o.now,
		})
	defer exporter.Flush()

	log.Info("Exporting poster")
	exported, err := exporter.Execute(ctx, pipeline.ExportInput{
		Template:   *tpl,
		Markup:     markup.HTML,
		Values:     values,
		Dimensions: sess.Dimensions(),
	})
	if err != nil {
		log.Error("Failed to export poster: %s", err)
		return RenderResult{}, fmt.Errorf("export stage: %w", err)
	}
	log.Info("Pipeline completed successfully")

	return RenderResult{
		Template:        *tpl,
		Export:          exported,
		Values:          values,
		Markup:          markup.HTML,
		Dimensions:      sess.Dimensions(),
		DimensionSource: sess.DimensionSource(),
		FormulaPasses:   formulas.Passes,
		Cyclic:          formulas.Cyclic,
	}, nil
}

func (o *Orchestrator) loadTemplate(ctx context.Context, req RenderRequest) (*pipeline.TemplateDefinition, error) {
	tpl := req.Template
	if tpl == nil {
		if req.TemplateID == "" {
			return nil, pipeline.NewError(pipeline.KindValidation, "no template selected")
		}
		found, err := o.deps.Templates.FindTemplate(ctx, req.TemplateID)
		if errors.Is(err, ports.ErrNotFound) {
			return nil, pipeline.WrapError(pipeline.KindValidation, err, "template %s", req.TemplateID)
		}
		if err != nil {
			return nil, fmt.Errorf("find template %s: %w", req.TemplateID, err)
		}
		tpl = found
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return tpl, nil
}

// applyValues sets the values in name order so errors are reported deterministically.
func applyValues(sess *session.Session, values map[string]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := sess.SetValue(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// History returns the signed-in user's latest records, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]pipeline.GeneratedVisualRecord, error) {
	if limit <= 0 {
		limit = o.config.HistoryLimit
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	account, err := o.deps.Auth.CurrentAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("get current account: %w", err)
	}
	if account == nil {
		return nil, session.ErrNotAuthenticated
	}
	records, err := o.deps.Records.ListGeneratedVisuals(ctx, account.ID, limit)
	if err != nil {
		return nil, pipeline.WrapError(pipeline.KindPersistence, err, "list history")
	}
	return records, nil
}
