// Package memstore keeps templates, records, profiles, objects and accounts
// in memory. The CLI uses it when no database or bucket is configured.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// Store implements the template, record and profile stores.
type Store struct {
	mu           sync.RWMutex
	contentTypes map[string]pipeline.ContentType
	templates    map[string]pipeline.TemplateDefinition
	records      []pipeline.GeneratedVisualRecord
	profiles     map[string]pipeline.UserProfile
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		contentTypes: make(map[string]pipeline.ContentType),
		templates:    make(map[string]pipeline.TemplateDefinition),
		profiles:     make(map[string]pipeline.UserProfile),
	}
}

// PutContentType inserts or replaces a content type.
func (s *Store) PutContentType(ct pipeline.ContentType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentTypes[ct.ID] = ct
}

// PutTemplate inserts or replaces a template.
func (s *Store) PutTemplate(tpl pipeline.TemplateDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = tpl
}

func (s *Store) FindTemplate(ctx context.Context, id string) (*pipeline.TemplateDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &tpl, nil
}

func (s *Store) ListTemplates(ctx context.Context, contentTypeID string) ([]pipeline.TemplateDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []pipeline.TemplateDefinition{}
	for _, tpl := range s.templates {
		if !tpl.Active || (contentTypeID != "" && tpl.ContentTypeID != contentTypeID) {
			continue
		}
		out = append(out, tpl)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListContentTypes(ctx context.Context) ([]pipeline.ContentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []pipeline.ContentType{}
	for _, ct := range s.contentTypes {
		if ct.Active {
			out = append(out, ct)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) InsertGeneratedVisual(ctx context.Context, rec pipeline.GeneratedVisualRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Content = rec.Content.Clone()
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) ListGeneratedVisuals(ctx context.Context, userID string, limit int) ([]pipeline.GeneratedVisualRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []pipeline.GeneratedVisualRecord{}
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	// Newest first; insertion order breaks ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateProfile(ctx context.Context, profile pipeline.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return ErrProfileExists
	}
	s.profiles[profile.ID] = profile
	return nil
}

func (s *Store) FindProfile(ctx context.Context, id string) (*pipeline.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &p, nil
}

var (
	_ ports.TemplateStore     = (*Store)(nil)
	_ ports.VisualRecordStore = (*Store)(nil)
	_ ports.ProfileStore      = (*Store)(nil)
)
