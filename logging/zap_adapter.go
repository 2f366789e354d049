package logging

import "go.uber.org/zap"

// zapAdapter bridges a pre-existing *zap.SugaredLogger (handed to us by
// a third-party dependency that insists on zap) into the Logger
// interface, so call sites never need to special-case it.
type zapAdapter struct {
	name  string
	level *AtomicLevel
	sugar *zap.SugaredLogger
}

// FromZapCompatible wraps z as a Logger. Level filtering happens on
// the wrapper, not on z itself, so the level comparison applies
// uniformly with Loggers backed by appenders.
func FromZapCompatible(z *zap.SugaredLogger) Logger {
	return &zapAdapter{name: z.Desugar().Name(), level: NewAtomicLevelAt(INFO), sugar: z}
}

func (a *zapAdapter) Name() string    { return a.name }
func (a *zapAdapter) GetLevel() Level { return a.level.Get() }
func (a *zapAdapter) SetLevel(l Level) {
	a.level.Set(l)
}

func (a *zapAdapter) enabled(l Level) bool { return l >= a.level.Get() }

func (a *zapAdapter) Debug(args ...any) {
	if a.enabled(DEBUG) {
		a.sugar.Debug(args...)
	}
}
func (a *zapAdapter) Debugf(t string, args ...any) {
	if a.enabled(DEBUG) {
		a.sugar.Debugf(t, args...)
	}
}
func (a *zapAdapter) Debugw(msg string, kv ...any) {
	if a.enabled(DEBUG) {
		a.sugar.Debugw(msg, kv...)
	}
}
func (a *zapAdapter) Info(args ...any) {
	if a.enabled(INFO) {
		a.sugar.Info(args...)
	}
}
func (a *zapAdapter) Infof(t string, args ...any) {
	if a.enabled(INFO) {
		a.sugar.Infof(t, args...)
	}
}
func (a *zapAdapter) Infow(msg string, kv ...any) {
	if a.enabled(INFO) {
		a.sugar.Infow(msg, kv...)
	}
}
func (a *zapAdapter) Warn(args ...any) {
	if a.enabled(WARN) {
		a.sugar.Warn(args...)
	}
}
func (a *zapAdapter) Warnf(t string, args ...any) {
	if a.enabled(WARN) {
		a.sugar.Warnf(t, args...)
	}
}
func (a *zapAdapter) Warnw(msg string, kv ...any) {
	if a.enabled(WARN) {
		a.sugar.Warnw(msg, kv...)
	}
}
func (a *zapAdapter) Error(args ...any) {
	if a.enabled(ERROR) {
		a.sugar.Error(args...)
	}
}
func (a *zapAdapter) Errorf(t string, args ...any) {
	if a.enabled(ERROR) {
		a.sugar.Errorf(t, args...)
	}
}
func (a *zapAdapter) Errorw(msg string, kv ...any) {
	if a.enabled(ERROR) {
		a.sugar.Errorw(msg, kv...)
	}
}

func (a *zapAdapter) Sublogger(name string) Logger {
	full := name
	if a.name != "" {
		full = a.name + "." + name
	}
	return &zapAdapter{name: full, level: NewAtomicLevelAt(INFO), sugar: a.sugar.Named(name)}
}
