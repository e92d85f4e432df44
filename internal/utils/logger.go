package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger defines a simple interface for logging.
// This allows for easy replacement with a more sophisticated logger if needed.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})
}

// LogLevel defines the verbosity of the logger.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorDim    = "\033[2m"
)

func colorize(s string, color string, noColor bool) string {
	if noColor {
		return s
	}
	return color + s + colorReset
}

// defaultLogger is a basic implementation of the Logger interface.
type defaultLogger struct {
	out      *log.Logger
	errOut   *log.Logger
	logLevel LogLevel
	noColor  bool
}

// NewDefaultLogger creates a new logger with specified options. When silent
// is set, everything below the error level is discarded.
func NewDefaultLogger(level LogLevel, noColor bool, silent bool) Logger {
	var stdout io.Writer = os.Stdout
	if silent {
		stdout = io.Discard
	}
	return &defaultLogger{
		out:      log.New(stdout, "", 0),
		errOut:   log.New(os.Stderr, "", 0),
		logLevel: level,
		noColor:  noColor,
	}
}

func (l *defaultLogger) logf(level LogLevel, label string, color string, format string, v ...interface{}) {
	if l.logLevel > level {
		return
	}
	prefix := fmt.Sprintf("%s [%s] ",
		colorize(fmt.Sprintf("[%s]", time.Now().Format("15:04:05")), colorDim, l.noColor),
		colorize(label, color, l.noColor),
	)
	target := l.out
	if level >= LevelError {
		target = l.errOut
	}
	target.Print(prefix + fmt.Sprintf(format, v...))
}

func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	l.logf(LevelDebug, "DEBUG", colorBlue, format, v...)
}

func (l *defaultLogger) Infof(format string, v ...interface{}) {
	l.logf(LevelInfo, "INFO", colorGreen, format, v...)
}

func (l *defaultLogger) Warnf(format string, v ...interface{}) {
	l.logf(LevelWarn, "WARN", colorYellow, format, v...)
}

func (l *defaultLogger) Errorf(format string, v ...interface{}) {
	l.logf(LevelError, "ERROR", colorRed, format, v...)
}

func (l *defaultLogger) Fatalf(format string, v ...interface{}) {
	l.logf(LevelFatal, "FATAL", colorRed, format, v...)
	os.Exit(1)
}

// NoOpLogger discards everything. Useful for tests and for utility
// functions where a logger might not always be provided.
type NoOpLogger struct{}

func (l *NoOpLogger) Debugf(format string, v ...interface{}) {}
func (l *NoOpLogger) Infof(format string, v ...interface{})  {}
func (l *NoOpLogger) Warnf(format string, v ...interface{})  {}
func (l *NoOpLogger) Errorf(format string, v ...interface{}) {}
func (l *NoOpLogger) Fatalf(format string, v ...interface{}) {}
