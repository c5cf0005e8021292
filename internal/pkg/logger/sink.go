package logger

import (
	"context"
	"log/slog"
	"sync"
)

// Severity of a diagnostic emitted by the extraction pipeline.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Sink accepts human readable progress and warning messages.
// Components never print directly, they report through a Sink they were given.
type Sink interface {
	Emit(ctx context.Context, severity Severity, msg string)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(context.Context, Severity, string)

func (f SinkFunc) Emit(ctx context.Context, severity Severity, msg string) {
	f(ctx, severity, msg)
}

type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a Sink writing every diagnostic as a slog record.
func NewSlogSink(logger *slog.Logger) Sink {
	return &slogSink{logger: logger}
}

func (s *slogSink) Emit(ctx context.Context, severity Severity, msg string) {
	if ctx == nil {
		ctx = context.Background()
	}

	switch severity {
	case SeverityWarn:
		s.logger.WarnContext(ctx, msg)
	case SeverityError:
		s.logger.ErrorContext(ctx, msg)
	default:
		s.logger.InfoContext(ctx, msg)
	}
}

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(context.Context, Severity, string) {})

// Entry is a single diagnostic captured by a Recorder.
type Entry struct {
	Severity Severity
	Message  string
	Attrs    []slog.Attr
}

// Recorder is a Sink keeping every diagnostic in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Emit(ctx context.Context, severity Severity, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{Severity: severity, Message: msg, Attrs: AttrsFrom(ctx)})
}

// Entries returns a copy of the recorded diagnostics.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns number of recorded diagnostics with the given severity.
func (r *Recorder) Count(severity Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.Severity == severity {
			n++
		}
	}
	return n
}
