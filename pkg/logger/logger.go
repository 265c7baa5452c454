// Package logger builds the application's slog loggers: JSON for
// production aggregation, text for development, with optional context
// extractors that stamp request-scoped values onto every record.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Format selects the log output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logger settings sourced from the environment.
type Config struct {
	Level  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	Format Format     `env:"LOG_FORMAT" envDefault:"json"`
}

type settings struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// Option configures logger creation.
type Option func(*settings)

// WithLevel sets the minimum level.
func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat sets the output format. Invalid formats panic so a
// misconfigured service fails at startup.
func WithFormat(f Format) Option {
	return func(s *settings) {
		switch f {
		case FormatJSON, FormatText:
			s.format = f
		default:
			panic(fmt.Errorf("invalid log format %q", f))
		}
	}
}

// WithOutput sets the output writer. Nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.output = w
		}
	}
}

// WithAttr adds static attributes present on every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.attrs = append(s.attrs, attrs...) }
}

// WithContextExtractors registers functions that pull dynamic attributes
// from the context at log time.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		for _, ex := range extractors {
			if ex != nil {
				s.extractors = append(s.extractors, ex)
			}
		}
	}
}

// WithContextValue adds an extractor that logs the context value under key
// whenever it is present.
func WithContextValue(name string, key any) Option {
	return func(s *settings) {
		if name == "" || key == nil {
			return
		}
		s.extractors = append(s.extractors, func(ctx context.Context) (slog.Attr, bool) {
			if v := ctx.Value(key); v != nil {
				return slog.Any(name, v), true
			}
			return slog.Attr{}, false
		})
	}
}

// New builds a logger for the given service name.
func New(service string, opts ...Option) *slog.Logger {
	s := settings{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(&s)
	}

	handlerOpts := &slog.HandlerOptions{Level: s.level}
	var handler slog.Handler
	if s.format == FormatText {
		handler = slog.NewTextHandler(s.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(s.output, handlerOpts)
	}

	attrs := append([]slog.Attr{slog.String("service", service)}, s.attrs...)
	handler = handler.WithAttrs(attrs)
	if len(s.extractors) > 0 {
		handler = NewContextHandler(handler, s.extractors...)
	}
	return slog.New(handler)
}

// NewDevelopment builds a text logger at debug level for local work.
func NewDevelopment(service string, opts ...Option) *slog.Logger {
	base := []Option{WithFormat(FormatText), WithLevel(slog.LevelDebug)}
	return New(service, append(base, opts...)...)
}
