// Package log provides a global logger with a configurable logging level. The library logs nothing
// unless a client raises the level.

package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Level int

const (
	LevelNone    Level = iota // Disables logging.
	LevelError                // Logs failures that are not expected during normal use.
	LevelWarning              // Logs anomalies that are expected to occur occasionally.
	LevelInfo                 // Logs major events, such as logins and command dispatches.
	LevelDebug                // Logs request/response traffic.
)

var (
	mu     sync.Mutex
	level  Level
	output io.Writer = os.Stderr
)

func (l Level) label() string {
	switch l {
	case LevelError:
		return "[error]"
	case LevelWarning:
		return "[warn ]"
	case LevelInfo:
		return "[info ]"
	case LevelDebug:
		return "[debug]"
	}
	return "[?????]"
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetOutput redirects log messages to w. The default is os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func emit(l Level, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if l > level {
		return
	}
	msg := fmt.Sprintf(format, a...)
	fmt.Fprintf(output, "%s %s %s\n", time.Now().Format(time.RFC3339), l.label(), msg)
}

func Debug(format string, a ...interface{}) {
	emit(LevelDebug, format, a...)
}

func Info(format string, a ...interface{}) {
	emit(LevelInfo, format, a...)
}

func Warning(format string, a ...interface{}) {
	emit(LevelWarning, format, a...)
}

func Error(format string, a ...interface{}) {
	emit(LevelError, format, a...)
}
