package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestFileAppenderWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldctrld.log")
	a := NewFileAppender(path)

	err := a.Write(Entry{Time: time.Now(), Level: INFO, LoggerName: "test", Message: "hello"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Sync(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(contents) > 0, test.ShouldBeTrue)
}

func TestStdoutAppenderWrites(t *testing.T) {
	a := NewStdoutAppender()
	err := a.Write(Entry{Time: time.Now(), Level: INFO, LoggerName: "test", Message: "hello"})
	test.That(t, err, test.ShouldBeNil)
}
