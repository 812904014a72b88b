// Package log provides named leveled loggers backed by go-logging. All
// loggers share a single sink and a global verbosity that can be overridden
// per module.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

type Level logging.Level

// The levels that can be passed to the SetLevel function.
const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var levelNames = [...]string{"debug", "info", "notice", "warning", "error"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// Parse a level name as returned by Level.String.
func ParseLevel(name string) (Level, error) {
	for index, levelName := range levelNames {
		if strings.EqualFold(name, levelName) {
			return Level(index), nil
		}
	}
	return Notice, fmt.Errorf("log: unknown level %q", name)
}

// The logger format
var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

// The internal leveled logger backend
var leveledBackend logging.LeveledBackend

// Global and per module levels; reapplied whenever the sink changes.
var (
	globalLevel  = Notice
	moduleLevels = map[string]Level{}
)

// The logger interface
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// Create a new named logger.
func New(name string) Logger {
	return logging.MustGetLogger(name)
}

// Override the backend output sink. Configured levels are preserved.
func SetSink(sink io.Writer) {
	backend := logging.NewLogBackend(sink, "", 0)
	backendWithFormatter := logging.NewBackendFormatter(backend, format)
	leveledBackend = logging.AddModuleLevel(backendWithFormatter)
	leveledBackend.SetLevel(backendLevel(globalLevel), "")
	for module, level := range moduleLevels {
		leveledBackend.SetLevel(backendLevel(level), module)
	}
	logging.SetBackend(leveledBackend)
}

// Set logger verbosity for all modules without an explicit level.
func SetLevel(level Level) {
	globalLevel = level
	leveledBackend.SetLevel(backendLevel(level), "")
}

// Set logger verbosity for a single module.
func SetModuleLevel(module string, level Level) {
	moduleLevels[module] = level
	leveledBackend.SetLevel(backendLevel(level), module)
}

func backendLevel(level Level) logging.Level {
	switch level {
	case Debug:
		return logging.DEBUG
	case Info:
		return logging.INFO
	case Warning:
		return logging.WARNING
	case Error:
		return logging.ERROR
	}
	return logging.NOTICE
}

func init() {
	SetSink(os.Stdout)
	SetLevel(Notice)
}
