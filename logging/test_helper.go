package logging

import "testing"

// NewTestLogger returns a Logger that writes through tb.Logf, so its
// output only appears when the test fails or is run with -v.
func NewTestLogger(tb testing.TB) Logger {
	tb.Helper()
	reg := newRegistry()
	l := &impl{
		name:       tb.Name(),
		level:      NewAtomicLevelAt(DEBUG),
		appenders:  []Appender{&testAppender{tb: tb}},
		registry:   reg,
		testHelper: tb.Helper,
	}
	reg.registerLogger(l.name, l)
	return l
}

type testAppender struct {
	tb testing.TB
}

func (a *testAppender) Write(e Entry) error {
	a.tb.Helper()
	a.tb.Logf("%s\t%s\t%s", e.Level, e.LoggerName, e.Message)
	return nil
}

func (a *testAppender) Sync() error { return nil }
