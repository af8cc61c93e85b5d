package ports

import (
	"context"
	"errors"

	"github.com/user/postergen/pkg/pipeline"
)

// ErrNotFound is returned by stores when a single requested row does not exist.
// Listing operations return an empty slice instead.
var ErrNotFound = errors.New("not found")

// TemplateStore reads templates and content types.
type TemplateStore interface {
	// FindTemplate returns the template with the given id or ErrNotFound.
	FindTemplate(ctx context.Context, id string) (*pipeline.TemplateDefinition, error)

	// ListTemplates returns the active templates of a content type ordered by their order column.
	// An empty contentTypeID lists every active template.
	ListTemplates(ctx context.Context, contentTypeID string) ([]pipeline.TemplateDefinition, error)

	// ListContentTypes returns the active content types ordered by their order column.
	ListContentTypes(ctx context.Context) ([]pipeline.ContentType, error)
}

// VisualRecordStore persists generated-visual receipts.
type VisualRecordStore interface {
	// InsertGeneratedVisual writes a new record. Records are never updated.
	InsertGeneratedVisual(ctx context.Context, rec pipeline.GeneratedVisualRecord) error

	// ListGeneratedVisuals returns a user's records, newest first, at most limit rows.
	ListGeneratedVisuals(ctx context.Context, userID string, limit int) ([]pipeline.GeneratedVisualRecord, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	// CreateProfile inserts a profile row linked to an account id.
	CreateProfile(ctx context.Context, profile pipeline.UserProfile) error

	// FindProfile returns the profile for an account id or ErrNotFound.
	FindProfile(ctx context.Context, id string) (*pipeline.UserProfile, error)
}
