// Package nullsink provides a debug sink that discards everything.
package nullsink

import (
	"image"

	"github.com/user/postergen/pkg/ports"
)

// Sink discards all debug output.
type Sink struct{}

// New creates a new Sink.
func New() *Sink {
	return &Sink{}
}

func (s *Sink) Enabled() bool                        { return false }
func (s *Sink) SaveFormState(data []byte) error      { return nil }
func (s *Sink) SaveMarkup(html []byte) error         { return nil }
func (s *Sink) SaveCapture(img image.Image) error    { return nil }
func (s *Sink) SaveClassification(data []byte) error { return nil }

var _ ports.DebugSink = (*Sink)(nil)
