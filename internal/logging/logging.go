// Package logging provides the leveled logger used throughout multipacks. It
// is a thin layer over zerolog with a printf-style API.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// LevelNames maps levels to their accepted spellings, for flags and config.
var LevelNames = map[Level][]string{
	Debug: {"debug"},
	Info:  {"info"},
	Warn:  {"warn", "warning"},
	Error: {"error"},
}

func (l Level) String() string {
	if names, ok := LevelNames[l]; ok {
		return names[0]
	}
	return "info"
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel accepts the names in LevelNames.
func ParseLevel(s string) (Level, bool) {
	for l, names := range LevelNames {
		for _, n := range names {
			if n == s {
				return l, true
			}
		}
	}
	return Info, false
}

type Config struct {
	Level  Level
	Output io.Writer // defaults to os.Stderr
}

type Logger struct {
	log zerolog.Logger
}

// New returns a logger writing human-readable lines to a terminal and JSON
// lines otherwise.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = zerolog.ConsoleWriter{Out: f, TimeFormat: time.TimeOnly}
	}

	return &Logger{log: zerolog.New(out).Level(cfg.Level.zerolog()).With().Timestamp().Logger()}
}

func NewNop() *Logger {
	return &Logger{log: zerolog.Nop()}
}

// With returns a child logger that adds the key/value pair to every line.
func (l *Logger) With(key, value string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{log: l.log.With().Str(key, value).Logger()}
}

func (l *Logger) Debugf(f string, a ...any) {
	if l == nil {
		return
	}
	l.log.Debug().Msgf(f, a...)
}

func (l *Logger) Infof(f string, a ...any) {
	if l == nil {
		return
	}
	l.log.Info().Msgf(f, a...)
}

func (l *Logger) Warnf(f string, a ...any) {
	if l == nil {
		return
	}
	l.log.Warn().Msgf(f, a...)
}

func (l *Logger) Errorf(f string, a ...any) {
	if l == nil {
		return
	}
	l.log.Error().Msgf(f, a...)
}
