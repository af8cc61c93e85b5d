// Package filesink writes pipeline artefacts to a debug directory.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/user/postergen/pkg/ports"
)

// Sink saves debug output to files. Repeated artefacts of the same kind are
// numbered so several exports in one run do not overwrite each other.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer

	mu  sync.Mutex
	seq map[string]int
}

// New creates a new Sink rooted at baseDir.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
		seq:      make(map[string]int),
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveFormState saves the converged form values.
func (s *Sink) SaveFormState(data []byte) error {
	return s.write("form-state", "json", data)
}

// SaveMarkup saves the normalized capture document.
func (s *Sink) SaveMarkup(html []byte) error {
	return s.write("markup", "html", html)
}

// SaveCapture saves the rasterized bitmap as PNG.
func (s *Sink) SaveCapture(img image.Image) error {
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode capture: %w", err)
	}
	return s.write("capture", "png", data)
}

// SaveClassification saves a classifier batch result.
func (s *Sink) SaveClassification(data []byte) error {
	return s.write("classification", "json", data)
}

func (s *Sink) write(kind, ext string, data []byte) error {
	s.mu.Lock()
	n := s.seq[kind]
	s.seq[kind] = n + 1
	s.mu.Unlock()

	path := filepath.Join(s.baseDir, fmt.Sprintf("%s-%03d.%s", kind, n, ext))
	if err := s.fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var _ ports.DebugSink = (*Sink)(nil)
