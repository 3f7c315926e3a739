// Package logger provides leveled logging for the service.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger writes leveled messages through a standard logger.
type Logger struct {
	level Level
	out   *log.Logger
}

var defaultLogger = &Logger{
	level: InfoLevel,
	out:   log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
}

// ParseLevel maps a level name to a Level. Unknown names default to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init configures the default logger. Format "text" adds source locations;
// any other format keeps the plain timestamped output.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	defaultLogger = &Logger{
		level: ParseLevel(level),
		out:   log.New(os.Stderr, "", flags),
	}
}

// SetOutput redirects the default logger, primarily for tests.
func SetOutput(w io.Writer) {
	defaultLogger.out.SetOutput(w)
}

func emit(level Level, tag string, format string, args ...interface{}) {
	if defaultLogger.level > level {
		return
	}
	_ = defaultLogger.out.Output(3, fmt.Sprintf(tag+" "+format, args...))
}

func Debug(format string, args ...interface{}) {
	emit(DebugLevel, "[DEBUG]", format, args...)
}

func Info(format string, args ...interface{}) {
	emit(InfoLevel, "[INFO]", format, args...)
}

func Warn(format string, args ...interface{}) {
	emit(WarnLevel, "[WARN]", format, args...)
}

func Error(format string, args ...interface{}) {
	emit(ErrorLevel, "[ERROR]", format, args...)
}

func Fatal(format string, args ...interface{}) {
	_ = defaultLogger.out.Output(3, fmt.Sprintf("[FATAL] "+format, args...))
	os.Exit(1)
}
