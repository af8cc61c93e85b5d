package mocks

import (
	"context"
	"sync"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// TemplateStore is a mock implementation of ports.TemplateStore.
type TemplateStore struct {
	FindTemplateFunc     func(ctx context.Context, id string) (*pipeline.TemplateDefinition, error)
	ListTemplatesFunc    func(ctx context.Context, contentTypeID string) ([]pipeline.TemplateDefinition, error)
	ListContentTypesFunc func(ctx context.Context) ([]pipeline.ContentType, error)
}

func (m *TemplateStore) FindTemplate(ctx context.Context, id string) (*pipeline.TemplateDefinition, error) {
	if m.FindTemplateFunc != nil {
		return m.FindTemplateFunc(ctx, id)
	}
	return nil, ports.ErrNotFound
}

func (m *TemplateStore) ListTemplates(ctx context.Context, contentTypeID string) ([]pipeline.TemplateDefinition, error) {
	if m.ListTemplatesFunc != nil {
		return m.ListTemplatesFunc(ctx, contentTypeID)
	}
	return nil, nil
}

func (m *TemplateStore) ListContentTypes(ctx context.Context) ([]pipeline.ContentType, error) {
	if m.ListContentTypesFunc != nil {
		return m.ListContentTypesFunc(ctx)
	}
	return nil, nil
}

var _ ports.TemplateStore = (*TemplateStore)(nil)

// VisualRecordStore is a mock implementation of ports.VisualRecordStore.
type VisualRecordStore struct {
	mu sync.Mutex

	InsertFunc func(ctx context.Context, rec pipeline.GeneratedVisualRecord) error
	ListFunc   func(ctx context.Context, userID string, limit int) ([]pipeline.GeneratedVisualRecord, error)

	// Inserted holds every record passed to InsertGeneratedVisual that InsertFunc accepted.
	Inserted []pipeline.GeneratedVisualRecord
	Attempts int
}

func (m *VisualRecordStore) InsertGeneratedVisual(ctx context.Context, rec pipeline.GeneratedVisualRecord) error {
	m.mu.Lock()
	m.Attempts++
	m.mu.Unlock()
	if m.InsertFunc != nil {
		if err := m.InsertFunc(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inserted = append(m.Inserted, rec)
	return nil
}

func (m *VisualRecordStore) ListGeneratedVisuals(ctx context.Context, userID string, limit int) ([]pipeline.GeneratedVisualRecord, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, limit)
	}
	return nil, nil
}

// Records returns a copy of the accepted records.
func (m *VisualRecordStore) Records() []pipeline.GeneratedVisualRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.GeneratedVisualRecord(nil), m.Inserted...)
}

var _ ports.VisualRecordStore = (*VisualRecordStore)(nil)

// ProfileStore is a mock implementation of ports.ProfileStore.
type ProfileStore struct {
	mu sync.Mutex

	CreateProfileFunc func(ctx context.Context, profile pipeline.UserProfile) error
	FindProfileFunc   func(ctx context.Context, id string) (*pipeline.UserProfile, error)

	Created []pipeline.UserProfile
}

func (m *ProfileStore) CreateProfile(ctx context.Context, profile pipeline.UserProfile) error {
	if m.CreateProfileFunc != nil {
		if err := m.CreateProfileFunc(ctx, profile); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, profile)
	return nil
}

func (m *ProfileStore) FindProfile(ctx context.Context, id string) (*pipeline.UserProfile, error) {
	if m.FindProfileFunc != nil {
		return m.FindProfileFunc(ctx, id)
	}
	return nil, ports.ErrNotFound
}

var _ ports.ProfileStore = (*ProfileStore)(nil)
