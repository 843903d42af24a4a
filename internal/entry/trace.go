package entry

import "log"

// Tracer receives trace-level events from folders. It is injected per folder
// with WithTracer; nothing in this package logs globally.
type Tracer interface {
	Tracef(format string, args ...any)
}

type nopTracer struct{}

func (nopTracer) Tracef(string, ...any) {}

type logTracer struct {
	l *log.Logger
}

func (t logTracer) Tracef(format string, args ...any) {
	t.l.Printf(format, args...)
}

// LogTracer adapts a stdlib logger to Tracer. A nil logger traces to the
// standard logger.
func LogTracer(l *log.Logger) Tracer {
	if l == nil {
		l = log.Default()
	}
	return logTracer{l: l}
}

// TracerFunc adapts a plain function to Tracer.
type TracerFunc func(format string, args ...any)

func (f TracerFunc) Tracef(format string, args ...any) { f(format, args...) }

// Option configures a Folder at construction.
type Option func(*Folder)

// WithTracer routes the folder's insertion events to t.
func WithTracer(t Tracer) Option {
	return func(f *Folder) {
		if t != nil {
			f.tracer = t
		}
	}
}
