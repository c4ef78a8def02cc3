package observe

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"os"
	"sync"
	"time"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

var levelValues = map[string]LogLevel{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// ParseLogLevel parses a string log level. Unknown names fall back to
// info rather than erroring, so a bad config value cannot mute logs.
func ParseLogLevel(s string) LogLevel {
	if level, ok := levelValues[s]; ok {
		return level
	}
	return LevelInfo
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "info"
}

// redactedValue replaces the value of any field named in RedactedFields.
const redactedValue = "[REDACTED]"

var redacted = func() map[string]struct{} {
	m := make(map[string]struct{}, len(RedactedFields))
	for _, key := range RedactedFields {
		m[key] = struct{}{}
	}
	return m
}()

// jsonLogger writes one JSON object per line. WithOp children share the
// parent's mutex so lines from the whole family never interleave on the
// shared writer.
type jsonLogger struct {
	min   LogLevel
	mu    *sync.Mutex
	out   io.Writer
	bound map[string]any
}

// NewLogger creates a structured logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &jsonLogger{
		min: ParseLogLevel(level),
		mu:  &sync.Mutex{},
		out: w,
	}
}

// WithOp returns a logger that stamps every line with the operation
// context.
func (l *jsonLogger) WithOp(meta OpMeta) Logger {
	bound := make(map[string]any, len(l.bound)+2)
	maps.Copy(bound, l.bound)
	bound["cache.op"] = meta.Op
	if meta.Server != "" {
		bound["cache.server"] = meta.Server
	}
	return &jsonLogger{min: l.min, mu: l.mu, out: l.out, bound: bound}
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelError, msg, fields)
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields)
}

func (l *jsonLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.min {
		return
	}

	entry := make(map[string]any, len(l.bound)+len(fields)+3)
	maps.Copy(entry, l.bound)

	// Cached values are caller data; redact anything that may carry a
	// payload or credential.
	for _, f := range fields {
		if _, hit := redacted[f.Key]; hit {
			entry[f.Key] = redactedValue
			continue
		}
		entry[f.Key] = f.Value
	}

	// Reserved keys go in last so a caller field cannot shadow them.
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	line, err := json.Marshal(entry)
	if err != nil {
		return // drop entries that cannot serialize
	}
	line = append(line, '\n')

	l.mu.Lock()
	_, _ = l.out.Write(line)
	l.mu.Unlock()
}

var _ Logger = (*jsonLogger)(nil)
