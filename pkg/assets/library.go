// Package assets manages the per-template image library in object storage.
package assets

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
	"github.com/user/postergen/pkg/stages/classify"
)

// DefaultBucket is the bucket holding template assets.
const DefaultBucket = "template-assets"

var extensions = map[string]string{
	classify.MediaJPEG: "jpg",
	classify.MediaPNG:  "png",
	classify.MediaSVG:  "svg",
	classify.MediaWebP: "webp",
}

// Library uploads, lists and deletes the assets of a template.
type Library struct {
	storage ports.ObjectStorage
	logger  ports.Logger
	now     func() time.Time
}

// NewLibrary creates a new Library.
func NewLibrary(storage ports.ObjectStorage, logger ports.Logger) *Library {
	return &Library{
		storage: storage,
		logger:  logger.WithComponent("assets"),
		now:     time.Now,
	}
}

// Upload classifies the files and stores each one under
// "<templateID>/<unix ms>-<index>.<ext>". Existing objects are never
// overwritten. Files off the allow-list are left out of the batch without an
// error. On failure the assets stored so far are returned with the error.
func (l *Library) Upload(ctx context.Context, templateID string, files []pipeline.AssetFile) ([]pipeline.Asset, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, pipeline.NewError(pipeline.KindValidation, "template id is required")
	}
	valid, rejected := classify.FilterValid(files)
	for _, name := range rejected {
		l.logger.Debug("Rejected %s: media type not allowed", name)
	}

	classified := make([]pipeline.Asset, 0, len(valid))
	for _, f := range valid {
		asset, err := classify.Classify(f)
		if err != nil {
			return nil, err
		}
		classified = append(classified, asset)
	}

	stamp := l.now().UnixMilli()
	uploaded := make([]pipeline.Asset, 0, len(classified))
	for i, asset := range classified {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}
		p := ObjectPath(templateID, stamp, i, Extension(valid[i]))
		mediaType := strings.ToLower(valid[i].MediaType)
		if err := l.storage.Upload(ctx, p, mediaType, valid[i].Data, false); err != nil {
			return uploaded, pipeline.WrapError(pipeline.KindPersistence, err, "upload %s", valid[i].Name)
		}
		asset.Path = p
		asset.URL = l.storage.PublicURL(p)
		uploaded = append(uploaded, asset)
		l.logger.Debug("Uploaded %s as %s", asset.Name, p)
	}

	classify.SortByPriority(uploaded)
	return uploaded, nil
}

// List returns the object paths stored for a template.
func (l *Library) List(ctx context.Context, templateID string) ([]string, error) {
	paths, err := l.storage.List(ctx, templateID+"/")
	if err != nil {
		return nil, pipeline.WrapError(pipeline.KindPersistence, err, "list assets of %s", templateID)
	}
	return paths, nil
}

// Delete removes the given objects.
func (l *Library) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := l.storage.Delete(ctx, paths...); err != nil {
		return pipeline.WrapError(pipeline.KindPersistence, err, "delete %d assets", len(paths))
	}
	l.logger.Debug("Deleted %d assets", len(paths))
	return nil
}

// ObjectPath builds the storage path of the index-th file of an upload batch.
func ObjectPath(templateID string, unixMs int64, index int, ext string) string {
	return fmt.Sprintf("%s/%d-%d.%s", templateID, unixMs, index, ext)
}

// Extension returns the file's extension without the dot, taken from its
// name or else derived from its media type.
func Extension(f pipeline.AssetFile) string {
	if ext := strings.TrimPrefix(path.Ext(f.Name), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if ext, ok := extensions[strings.ToLower(f.MediaType)]; ok {
		return ext
	}
	return "bin"
}
