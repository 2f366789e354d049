package logging

import (
	"fmt"
	"strings"
	"time"
)

// Logger is the structured logger every package in this module takes
// a dependency on, rather than *zap.SugaredLogger directly, so that
// level and appender configuration can be changed at runtime per name
// via a Registry.
type Logger interface {
	Name() string

	Debug(args ...any)
	Debugf(template string, args ...any)
	Debugw(msg string, keysAndValues ...any)

	Info(args ...any)
	Infof(template string, args ...any)
	Infow(msg string, keysAndValues ...any)

	Warn(args ...any)
	Warnf(template string, args ...any)
	Warnw(msg string, keysAndValues ...any)

	Error(args ...any)
	Errorf(template string, args ...any)
	Errorw(msg string, keysAndValues ...any)

	GetLevel() Level
	SetLevel(Level)

	// Sublogger returns a logger named "<parent>.<name>", registered
	// under the same Registry as its parent but starting at the
	// default level (or whatever the Registry's active patterns
	// assign it), never inheriting the parent's current level.
	Sublogger(name string) Logger
}

// impl is the default Logger: a name, a mutable level, and a set of
// appenders every emitted Entry is fanned out to.
type impl struct {
	name       string
	level      *AtomicLevel
	appenders  []Appender
	registry   *Registry
	testHelper func()
}

// NewLogger returns a Logger named name, logging to stdout at INFO,
// registered in a private Registry of its own.
func NewLogger(name string) Logger {
	l, _ := NewLoggerWithRegistry(name)
	return l
}

// NewLoggerWithRegistry is like NewLogger but also returns the
// Registry the logger (and any Subloggers derived from it) are
// registered under, so callers can later push level-pattern
// configuration via Registry.Update.
func NewLoggerWithRegistry(name string) (Logger, *Registry) {
	reg := newRegistry()
	l := &impl{
		name:       name,
		level:      NewAtomicLevelAt(INFO),
		appenders:  []Appender{NewStdoutAppender()},
		registry:   reg,
		testHelper: func() {},
	}
	reg.registerLogger(name, l)
	return l, reg
}

// NewDebugLogger is NewLogger starting at DEBUG.
func NewDebugLogger(name string) Logger {
	reg := newRegistry()
	l := &impl{
		name:       name,
		level:      NewAtomicLevelAt(DEBUG),
		appenders:  []Appender{NewStdoutAppender()},
		registry:   reg,
		testHelper: func() {},
	}
	reg.registerLogger(name, l)
	return l
}

// NewBlankLogger returns a Logger with no appenders; nothing it emits
// is ever written anywhere. Useful where a Logger is required but
// output is not wanted.
func NewBlankLogger(name string) Logger {
	reg := newRegistry()
	l := &impl{
		name:       name,
		level:      NewAtomicLevelAt(INFO),
		registry:   reg,
		testHelper: func() {},
	}
	reg.registerLogger(name, l)
	return l
}

func (l *impl) Name() string       { return l.name }
func (l *impl) GetLevel() Level    { return l.level.Get() }
func (l *impl) SetLevel(lvl Level) { l.level.Set(lvl) }

func (l *impl) Sublogger(name string) Logger {
	full := name
	if l.name != "" {
		full = l.name + "." + name
	}
	sub := &impl{
		name:       full,
		level:      NewAtomicLevelAt(INFO),
		appenders:  l.appenders,
		registry:   l.registry,
		testHelper: l.testHelper,
	}
	reg := l.registry
	if reg == nil {
		reg = newRegistry()
	}
	return reg.getOrRegister(full, sub)
}

func (l *impl) log(lvl Level, msg string, kv []any) {
	l.testHelper()
	if lvl < l.level.Get() {
		return
	}
	entry := Entry{Time: time.Now(), Level: lvl, LoggerName: l.name, Message: msg, Fields: kv}
	for _, a := range l.appenders {
		_ = a.Write(entry)
	}
}

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

func (l *impl) Debug(args ...any)                   { l.log(DEBUG, joinArgs(args), nil) }
func (l *impl) Debugf(t string, args ...any)        { l.log(DEBUG, fmt.Sprintf(t, args...), nil) }
func (l *impl) Debugw(msg string, kv ...any)        { l.log(DEBUG, msg, kv) }
func (l *impl) Info(args ...any)                    { l.log(INFO, joinArgs(args), nil) }
func (l *impl) Infof(t string, args ...any)         { l.log(INFO, fmt.Sprintf(t, args...), nil) }
func (l *impl) Infow(msg string, kv ...any)         { l.log(INFO, msg, kv) }
func (l *impl) Warn(args ...any)                    { l.log(WARN, joinArgs(args), nil) }
func (l *impl) Warnf(t string, args ...any)         { l.log(WARN, fmt.Sprintf(t, args...), nil) }
func (l *impl) Warnw(msg string, kv ...any)         { l.log(WARN, msg, kv) }
func (l *impl) Error(args ...any)                   { l.log(ERROR, joinArgs(args), nil) }
func (l *impl) Errorf(t string, args ...any)        { l.log(ERROR, fmt.Sprintf(t, args...), nil) }
func (l *impl) Errorw(msg string, kv ...any)        { l.log(ERROR, msg, kv) }
