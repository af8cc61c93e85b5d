package mocks

import (
	"context"
	"sync"

	"github.com/user/postergen/pkg/ports"
)

// ObjectStorage is a mock implementation of ports.ObjectStorage.
type ObjectStorage struct {
	mu sync.Mutex

	UploadFunc func(ctx context.Context, path, contentType string, data []byte, overwrite bool) error
	ListFunc   func(ctx context.Context, prefix string) ([]string, error)
	DeleteFunc func(ctx context.Context, paths ...string) error

	Uploaded []string
	Deleted  []string
}

func (m *ObjectStorage) Upload(ctx context.Context, path, contentType string, data []byte, overwrite bool) error {
	if m.UploadFunc != nil {
		if err := m.UploadFunc(ctx, path, contentType, data, overwrite); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploaded = append(m.Uploaded, path)
	return nil
}

func (m *ObjectStorage) PublicURL(path string) string {
	return "https://storage.test/template-assets/" + path
}

func (m *ObjectStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, prefix)
	}
	return nil, nil
}

func (m *ObjectStorage) Delete(ctx context.Context, paths ...string) error {
	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(ctx, paths...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, paths...)
	return nil
}

var _ ports.ObjectStorage = (*ObjectStorage)(nil)
