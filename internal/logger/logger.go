package logger

import (
	"fmt"
	"log"
)

type Logger struct {
	l      *log.Logger
	prefix string
	debug  bool
}

func New(l *log.Logger) *Logger {
	//nolint:exhaustruct
	return &Logger{l: l}
}

// WithDebug returns a copy that also prints debug lines.
func (l *Logger) WithDebug(enabled bool) *Logger {
	child := *l
	child.debug = enabled

	return &child
}

// With returns a child logger that tags every line with the component name.
func (l *Logger) With(component string) *Logger {
	child := *l

	if child.prefix == "" {
		child.prefix = component
	} else {
		child.prefix = child.prefix + "." + component
	}

	return &child
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.print("Error", format, v...)
}

func (l *Logger) LogWarnf(format string, v ...any) {
	l.print("Warn", format, v...)
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.print("Info", format, v...)
}

func (l *Logger) LogDebugf(format string, v ...any) {
	if !l.debug {
		return
	}

	l.print("Debug", format, v...)
}

func (l *Logger) print(level, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)

	if l.prefix != "" {
		l.l.Printf("[%s] %s: %s\n", level, l.prefix, msg)

		return
	}

	l.l.Printf("[%s]: %s\n", level, msg)
}
