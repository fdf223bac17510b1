package logger

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger *zerolog.Logger

// Init sets up the global zerolog logger.
// level: "trace", "debug", "info", "warn", "error"
// file: optional log file; when set, JSON lines are appended to it as well
func Init(level string, file string) error {
	logLevel := ParseLevel(level)

	var console io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}
	}

	output := console
	if file != "" {
		fileWriter, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		output = zerolog.MultiLevelWriter(console, fileWriter)
	}

	logger := log.Output(output).With().Timestamp().Logger().Level(logLevel)
	Logger = &logger
	return nil
}

// InitFile sets up a logger that writes JSON lines to file only, or discards
// everything when file is empty. Used while the TUI owns the terminal.
func InitFile(level string, file string) error {
	if file == "" {
		logger := zerolog.New(io.Discard)
		Logger = &logger
		return nil
	}

	fileWriter, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	logger := zerolog.New(fileWriter).With().Timestamp().Logger().Level(ParseLevel(level))
	Logger = &logger
	return nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger.
// Before Init it returns a logger that discards everything.
func Get() *zerolog.Logger {
	if Logger == nil {
		logger := zerolog.New(io.Discard)
		Logger = &logger
	}
	return Logger
}
