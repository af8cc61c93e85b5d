package orchestrator

import (
	"context"
	"fmt"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/stages/classify"
	"github.com/user/postergen/pkg/stages/contactsheet"
)

// ClassifyRequest lists the files to classify.
type ClassifyRequest struct {
	Files        []pipeline.AssetFile
	AbortOnError bool
	// Sheet also renders a contact sheet of the classified assets.
	Sheet   bool
	Columns int
}

// ClassifyResult holds the classification and the optional contact sheet PNG.
type ClassifyResult struct {
	pipeline.ClassifyResult
	Sheet []byte
}

// Classify categorizes the files and sorts them by priority.
func (o *Orchestrator) Classify(ctx context.Context, req ClassifyRequest) (ClassifyResult, error) {
	log := o.deps.Logger
	log.Info("Classifying %d files", len(req.Files))

	res, err := classify.NewStage(o.deps.Sink, log).Execute(ctx, pipeline.ClassifyInput{
		Files:        req.Files,
		AbortOnError: req.AbortOnError,
	})
	if err != nil {
		log.Error("Failed to classify assets: %s", err)
		return ClassifyResult{}, fmt.Errorf("classify stage: %w", err)
	}
	out := ClassifyResult{ClassifyResult: res}
	if !req.Sheet || len(res.Assets) == 0 {
		return out, nil
	}

	files := make(map[string][]byte, len(req.Files))
	for _, f := range req.Files {
		files[f.Name] = f.Data
	}
	sheet, err := contactsheet.NewStage(o.deps.Renderer, log).Execute(ctx, contactsheet.Input{
		Assets:  res.Assets,
		Files:   files,
		Columns: req.Columns,
	})
	if err != nil {
		return ClassifyResult{}, fmt.Errorf("contact sheet stage: %w", err)
	}
	out.Sheet = sheet.PNG
	return out, nil
}
