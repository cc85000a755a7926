package obs

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger     *logrus.Logger
	defaultLoggerOnce sync.Once
)

// Logger returns the package-wide structured logger. It is created lazily
// with sane defaults (text formatter, info level, stderr) and can be
// replaced wholesale with SetLogger for callers that want JSON output or a
// different level, mirroring how the teacher's Option pattern lets callers
// override defaults rather than hard-coding global state.
func Logger() *logrus.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = logrus.New()
		defaultLogger.SetOutput(os.Stderr)
		defaultLogger.SetLevel(logrus.InfoLevel)
	})
	return defaultLogger
}

// SetLogger replaces the package-wide logger.
func SetLogger(l *logrus.Logger) {
	defaultLoggerOnce.Do(func() {})
	defaultLogger = l
}

// WithComponent returns an entry pre-tagged with a component field, used by
// the storage client, transaction commit path, and KV adapter so log lines
// can be filtered by subsystem.
func WithComponent(component string) *logrus.Entry {
	return Logger().WithField("component", component)
}
