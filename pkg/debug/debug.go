// Package debug provides conditional debug logging for settree.
//
// Debug logging is enabled by setting the SETTREE_DEBUG environment variable:
//
//	SETTREE_DEBUG=1 settree tree
//
// Messages go to stderr, or to the file named by SETTREE_DEBUG_FILE. The TUI
// redirects output to a file (or discards it) so the alternate screen is not
// corrupted. Warnings are always emitted; debug-level calls are no-ops unless
// debugging is enabled.
//
// Usage:
//
//	import "github.com/vanderheijden86/settree/pkg/debug"
//
//	func myFunc() {
//	    debug.Log("processing %d pages", count)
//	    // ...
//	    debug.LogTiming("myFunc", elapsed)
//	}
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	mu sync.Mutex
	// enabled is true when SETTREE_DEBUG env var is set
	enabled bool
	logger  = newLogger(os.Stderr)
	logFile *os.File
)

func init() {
	if os.Getenv("SETTREE_DEBUG") != "" {
		SetEnabled(true)
	}
	if path := os.Getenv("SETTREE_DEBUG_FILE"); path != "" {
		_ = SetOutputFile(path)
	}
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	l.SetLevel(logrus.WarnLevel)
	return l
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// SetOutputFile appends log output to path, creating it if needed. The
// previous log file, if any, is closed.
func SetOutputFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening debug log: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	logger.SetOutput(f)
	return nil
}

// Logger exposes the underlying logger for callers that want structured fields.
func Logger() *logrus.Logger {
	return logger
}

// WithField returns a log entry carrying a single structured field.
func WithField(key string, value any) *logrus.Entry {
	return logger.WithField(key, value)
}

// Log writes a debug message if debug logging is enabled.
// Uses printf-style formatting.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Debugf(format, args...)
}

// Warn writes a warning regardless of the debug setting.
func Warn(format string, args ...any) {
	logger.Warnf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	logger.WithField("took", d).Debugf("%s done", name)
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !enabled || !cond {
		return
	}
	logger.Debugf(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
// Usage:
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	    // ...
//	}
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	logger.Debugf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Debugf("<- %s (%v)", name, time.Since(start))
	}
}

// Trace is an alias for LogEnterExit for convenience.
var Trace = LogEnterExit

// Dump logs a value with its type for debugging complex structures.
func Dump(name string, v any) {
	if !enabled {
		return
	}
	logger.Debugf("%s: %T = %+v", name, v, v)
}

// Section logs a section header for visual organization in debug output.
func Section(name string) {
	if !enabled {
		return
	}
	logger.Debugf("=== %s ===", name)
}
