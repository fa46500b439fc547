// Package testutil provides test helpers shared across molfilter packages.
package testutil

import (
	"sync"

	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
)

// LogEntry is a single entry captured by RecordingLogger.
type LogEntry struct {
	Level   string
	Logger  string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the named field, or nil.
func (e LogEntry) Field(key string) interface{} {
	for i := len(e.Fields) - 1; i >= 0; i-- {
		if e.Fields[i].Key == key {
			return e.Fields[i].Value
		}
	}
	return nil
}

// RecordingLogger implements logging.Logger and keeps every entry in memory.
// Children created by With and Named write to the same store.  Safe for
// concurrent use.
type RecordingLogger struct {
	store  *logStore
	name   string
	fields []logging.Field
}

type logStore struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewRecordingLogger creates an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{store: &logStore{}}
}

func (l *RecordingLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.entries = append(l.store.entries, LogEntry{Level: level, Logger: l.name, Message: msg, Fields: all})
}

func (l *RecordingLogger) Debug(msg string, fields ...logging.Field) {
	l.log(logging.LevelDebug, msg, fields)
}

func (l *RecordingLogger) Info(msg string, fields ...logging.Field) {
	l.log(logging.LevelInfo, msg, fields)
}

func (l *RecordingLogger) Warn(msg string, fields ...logging.Field) {
	l.log(logging.LevelWarn, msg, fields)
}

func (l *RecordingLogger) Error(msg string, fields ...logging.Field) {
	l.log(logging.LevelError, msg, fields)
}

func (l *RecordingLogger) With(fields ...logging.Field) logging.Logger {
	child := *l
	child.fields = append(append([]logging.Field{}, l.fields...), fields...)
	return &child
}

func (l *RecordingLogger) Named(name string) logging.Logger {
	child := *l
	if l.name != "" {
		child.name = l.name + "." + name
	} else {
		child.name = name
	}
	return &child
}

func (l *RecordingLogger) Sync() error { return nil }

// Entries returns a copy of the captured entries.
func (l *RecordingLogger) Entries() []LogEntry {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	out := make([]LogEntry, len(l.store.entries))
	copy(out, l.store.entries)
	return out
}

// ByMessage returns the entries logged at level with message msg.
func (l *RecordingLogger) ByMessage(level, msg string) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if e.Level == level && e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether an entry with level and msg was logged.
func (l *RecordingLogger) HasMessage(level, msg string) bool {
	return len(l.ByMessage(level, msg)) > 0
}

// Clear discards captured entries.
func (l *RecordingLogger) Clear() {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.entries = l.store.entries[:0]
}

var _ logging.Logger = (*RecordingLogger)(nil)
