package logging

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// LoggerPatternConfig assigns Level to every registered logger whose
// name matches Pattern. Pattern is a literal dotted name with "*"
// standing for any run of characters, including dots: "rdk.*" matches
// "rdk.resource_manager.modmanager" as well as "rdk.resource_manager".
// A pattern without "*" matches only that exact name.
type LoggerPatternConfig struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Level   string `yaml:"level"   mapstructure:"level"`
}

// Registry tracks every Logger created under it by name and applies
// LoggerPatternConfig updates to them. Loggers created after an Update
// pick up whatever pattern currently matches their name.
type Registry struct {
	mu       sync.Mutex
	loggers  map[string]Logger
	patterns []LoggerPatternConfig
}

func newRegistry() *Registry {
	return &Registry{loggers: make(map[string]Logger)}
}

func (r *Registry) registerLogger(name string, logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggers[name] = logger
	if lvl, ok := matchPattern(name, r.patterns); ok {
		logger.SetLevel(lvl)
	}
}

// getOrRegister returns the logger already registered under name, or
// registers and returns candidate if none exists yet.
func (r *Registry) getOrRegister(name string, candidate Logger) Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.loggers[name]; ok {
		return existing
	}
	r.loggers[name] = candidate
	if lvl, ok := matchPattern(name, r.patterns); ok {
		candidate.SetLevel(lvl)
	}
	return candidate
}

func (r *Registry) loggerNamed(name string) (Logger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loggers[name]
	return l, ok
}

func (r *Registry) updateLoggerLevel(name string, lvl Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loggers[name]
	if !ok {
		return fmt.Errorf("logging: no logger named %q", name)
	}
	l.SetLevel(lvl)
	return nil
}

func (r *Registry) getRegisteredLoggerNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loggers))
	for n := range r.loggers {
		names = append(names, n)
	}
	return names
}

// GetCurrentConfig returns the pattern configuration installed by the
// most recent Update.
func (r *Registry) GetCurrentConfig() []LoggerPatternConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patterns
}

// Update installs configs as the registry's active level-pattern
// configuration and re-evaluates every currently registered logger
// against it: a logger matching no pattern resets to INFO, and among
// multiple matching patterns the one declared last in configs wins.
// Future loggers registered under this registry pick up the same
// configuration at registration time. An invalid pattern is reported
// to errorLogger and aborts the update.
func (r *Registry) Update(configs []LoggerPatternConfig, errorLogger Logger) error {
	for _, c := range configs {
		if _, err := compilePattern(c.Pattern); err != nil {
			if errorLogger != nil {
				errorLogger.Errorw("invalid log pattern, ignoring update", "pattern", c.Pattern, "err", err)
			}
			return err
		}
		if _, err := LevelFromString(c.Level); err != nil {
			if errorLogger != nil {
				errorLogger.Errorw("invalid log level, ignoring update", "level", c.Level, "err", err)
			}
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = configs
	for name, l := range r.loggers {
		lvl := INFO
		if matched, ok := matchPattern(name, configs); ok {
			lvl = matched
		}
		l.SetLevel(lvl)
	}
	return nil
}

// matchPattern reports the level of the last pattern in configs that
// matches name, if any matched.
func matchPattern(name string, configs []LoggerPatternConfig) (Level, bool) {
	var (
		level   Level
		matched bool
	)
	for _, c := range configs {
		re, err := compilePattern(c.Pattern)
		if err != nil {
			continue
		}
		if !re.MatchString(name) {
			continue
		}
		lvl, err := LevelFromString(c.Level)
		if err != nil {
			continue
		}
		level, matched = lvl, true
	}
	return level, matched
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(quoted, ".*") + "$")
}
