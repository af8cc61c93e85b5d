package mocks

import (
	"fmt"
	"sync"

	"github.com/user/postergen/pkg/ports"
)

// Entry is one recorded log line.
type Entry struct {
	Level     ports.LogLevel
	Component string
	Message   string
}

// Logger is a mock implementation of ports.Logger that records formatted entries.
type Logger struct {
	mu        *sync.Mutex
	entries   *[]Entry
	component string
}

// NewLogger creates a recording logger.
func NewLogger() *Logger {
	return &Logger{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.record(ports.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.record(ports.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.record(ports.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.record(ports.LevelError, msg, args) }

// WithComponent returns a logger sharing this logger's entries.
func (l *Logger) WithComponent(component string) ports.Logger {
	return &Logger{mu: l.mu, entries: l.entries, component: component}
}

func (l *Logger) record(level ports.LogLevel, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, Entry{Level: level, Component: l.component, Message: fmt.Sprintf(msg, args...)})
}

// Entries returns the entries at or above level.
func (l *Logger) Entries(level ports.LogLevel) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range *l.entries {
		if e.Level >= level {
			out = append(out, e)
		}
	}
	return out
}

var _ ports.Logger = (*Logger)(nil)
