package ports

import "strings"

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug is for stage internals, including swallowed per-field and per-file errors.
	LevelDebug LogLevel = iota
	// LevelInfo is for orchestration progress.
	LevelInfo
	// LevelWarn is for best-effort operations that failed without stopping the run.
	LevelWarn
	// LevelError is for failures that abort a run.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

var levelNames = map[LogLevel]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelQuiet: "quiet",
}

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLogLevel parses a level name, case-insensitively. Unknown names yield LevelInfo.
func ParseLogLevel(s string) LogLevel {
	s = strings.ToLower(strings.TrimSpace(s))
	for level, name := range levelNames {
		if name == s {
			return level
		}
	}
	if s == "warning" {
		return LevelWarn
	}
	return LevelInfo
}

// Logger is the logging capability shared by every stage and adapter.
// msg is a lexicon key: implementations may translate it before formatting with args.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with the component name.
	WithComponent(component string) Logger
}
