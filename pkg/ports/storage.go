package ports

import (
	"context"
	"errors"
)

// ErrObjectExists is returned when an upload would overwrite an existing object.
var ErrObjectExists = errors.New("object already exists")

// ObjectStorage stores asset files under caller-chosen paths.
type ObjectStorage interface {
	// Upload stores data at path. Unless overwrite is set it fails with
	// ErrObjectExists when the path is taken.
	Upload(ctx context.Context, path, contentType string, data []byte, overwrite bool) error

	// PublicURL resolves the public URL of a stored object.
	PublicURL(path string) string

	// List returns the paths stored under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the objects at the given paths.
	Delete(ctx context.Context, paths ...string) error
}
