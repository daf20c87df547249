// Package logging builds the harness logger: a go-ethereum logger whose level
// can be changed at runtime and whose output can be mirrored to a file.
package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

// Config describes how to build a Logger.
type Config struct {
	// Console receives every record at or above Level. It should not filter by level itself.
	Console slog.Handler
	Level   slog.Level
	// File, when set, mirrors the output as logfmt. The file is truncated first.
	File  string
	Store Appender
}

// Logger is a log.Logger with a mutable level and an optional mirrored file.
type Logger struct {
	log.Logger
	level *levelHandler
	file  *AsyncFile
}

func New(cfg Config) (*Logger, error) {
	if cfg.Console == nil {
		return nil, errors.New("console handler is required")
	}

	h := cfg.Console
	var file *AsyncFile
	if cfg.File != "" {
		if cfg.Store == nil {
			return nil, errors.New("store is required when a log file is configured")
		}
		var err error
		file, err = NewAsyncFile(cfg.File, cfg.Store)
		if err != nil {
			return nil, err
		}
		h = slog.NewMultiHandler(cfg.Console, log.LogfmtHandlerWithLevel(file, log.LevelTrace))
	}

	level := newLevelHandler(cfg.Level, h)
	return &Logger{
		Logger: log.NewLogger(level),
		level:  level,
		file:   file,
	}, nil
}

// SetLevel changes the level by name. An unknown name is reported as a warning
// and the current level is kept.
func (l *Logger) SetLevel(name string) bool {
	lvl, err := ParseLevel(name)
	if err != nil {
		l.Warn("Invalid log level, keeping current level", "level", name, "current", LevelName(l.Level()), "err", err)
		return false
	}
	l.level.SetLogLevel(lvl)
	return true
}

func (l *Logger) Level() slog.Level {
	return l.level.level.Level()
}

// Close flushes the mirrored log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// LevelName returns the name ParseLevel accepts for lvl.
func LevelName(lvl slog.Level) string {
	switch {
	case lvl <= log.LevelTrace:
		return "trace"
	case lvl <= log.LevelDebug:
		return "debug"
	case lvl <= log.LevelInfo:
		return "info"
	case lvl <= log.LevelWarn:
		return "warn"
	case lvl <= log.LevelError:
		return "error"
	default:
		return "crit"
	}
}

// ParseLevel accepts the go-ethereum level names in any case.
func ParseLevel(name string) (slog.Level, error) {
	lvl, err := oplog.LevelFromString(strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

var _ oplog.LvlSetter = (*levelHandler)(nil)

// levelHandler filters like oplog.DynamicLogHandler, but keeps the level in a
// slog.LevelVar so it can be changed from the /loglevel handler while other
// goroutines are logging.
type levelHandler struct {
	level *slog.LevelVar
	inner slog.Handler
}

func newLevelHandler(lvl slog.Level, inner slog.Handler) *levelHandler {
	level := new(slog.LevelVar)
	level.Set(lvl)
	return &levelHandler{level: level, inner: inner}
}

func (h *levelHandler) SetLogLevel(lvl slog.Level) {
	h.level.Set(lvl)
}

func (h *levelHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return lvl >= h.level.Level() && h.inner.Enabled(ctx, lvl)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.level.Level() {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *levelHandler) Unwrap() slog.Handler {
	return h.inner
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithGroup(name)}
}
