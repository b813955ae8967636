package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a zerolog logger that may also write to a rotating file.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
}

// NewLogger creates a logger writing to stderr, as console output when stderr
// is a terminal and JSON otherwise. A non-empty file adds a rotating log file.
func NewLogger(level, file string) *Logger {
	var console io.Writer = os.Stderr
	if isTerminal(os.Stderr) {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	output := console
	var rotator *lumberjack.Logger

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   file,
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   true,
				LocalTime:  true,
			}
			output = zerolog.MultiLevelWriter(console, rotator)
		}
	}

	l := zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger()

	return &Logger{Logger: l, rotator: rotator}
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
