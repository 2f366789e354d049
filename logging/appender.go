package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one structured log record handed to every Appender a Logger
// writes through.
type Entry struct {
	Time       time.Time
	Level      Level
	LoggerName string
	Message    string
	Fields     []any // alternating key, value
}

// Appender receives every log record whose level is at or above the
// emitting Logger's current level.
type Appender interface {
	Write(Entry) error
	Sync() error
}

type writerAppender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdoutAppender returns an Appender that writes tab-delimited lines
// to stdout.
func NewStdoutAppender() Appender {
	return &writerAppender{w: os.Stdout}
}

// NewFileAppender returns an Appender that writes to a size- and
// age-rotated log file at path.
func NewFileAppender(path string) Appender {
	return &writerAppender{w: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}}
}

func (a *writerAppender) Write(e Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var fields string
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields)/2)
		for i := 0; i+1 < len(e.Fields); i += 2 {
			parts = append(parts, fmt.Sprintf("%v=%v", e.Fields[i], e.Fields[i+1]))
		}
		fields = " " + strings.Join(parts, " ")
	}
	_, err := fmt.Fprintf(a.w, "%s\t%s\t%s\t%s%s\n",
		e.Time.Format(time.RFC3339Nano), e.Level, e.LoggerName, e.Message, fields)
	return err
}

func (a *writerAppender) Sync() error {
	if s, ok := a.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
