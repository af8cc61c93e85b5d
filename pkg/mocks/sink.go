package mocks

import (
	"image"
	"sync"

	"github.com/user/postergen/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink that keeps the last artefact of each kind.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	FormState      []byte
	Markup         []byte
	Capture        image.Image
	Classification []byte
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{enabled: enabled}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveFormState(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FormState = data
	return nil
}

func (m *DebugSink) SaveMarkup(html []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Markup = html
	return nil
}

func (m *DebugSink) SaveCapture(img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Capture = img
	return nil
}

func (m *DebugSink) SaveClassification(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Classification = data
	return nil
}

// MarkupString returns the last saved markup.
func (m *DebugSink) MarkupString() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return string(m.Markup)
}

var _ ports.DebugSink = (*DebugSink)(nil)
