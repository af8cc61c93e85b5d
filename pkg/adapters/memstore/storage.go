package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/user/postergen/pkg/ports"
)

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// Storage implements ports.ObjectStorage.
type Storage struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

// NewStorage creates an empty Storage whose public URLs start with baseURL.
func NewStorage(baseURL string) *Storage {
	return &Storage{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (s *Storage) Upload(ctx context.Context, path, contentType string, data []byte, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; ok && !overwrite {
		return ports.ErrObjectExists
	}
	s.objects[path] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return nil
}

func (s *Storage) PublicURL(path string) string {
	return s.baseURL + "/" + path
}

func (s *Storage) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for p := range s.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Storage) Delete(ctx context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

// Get returns a stored object.
func (s *Storage) Get(path string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[path]
	return o, ok
}

var _ ports.ObjectStorage = (*Storage)(nil)
