// Package logging builds the process logger: a zap core exposed through the
// log/slog API so packages log with slog and never import zap directly.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Logger pairs the slog front end with the zap logger that flushes it.
type Logger struct {
	*slog.Logger
	zap  *zap.Logger
	file *os.File
}

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New creates a logger at level. When logFile is set, output is appended to
// it instead of stdout.
func New(level, logFile string) (*Logger, error) {
	var (
		out  io.Writer = os.Stdout
		file *os.File
	)
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out, file = f, f
	}
	return newLogger(ParseLevel(level), out, file), nil
}

func newLogger(level zapcore.Level, out io.Writer, file *os.File) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.ConsoleSeparator = " | "

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(out), level)
	zl := zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{
		Logger: slog.New(zapslog.NewHandler(core)),
		zap:    zl,
		file:   file,
	}
}

// SetDefault installs the logger as slog's default.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

// Close flushes buffered entries and releases the log file.
func (l *Logger) Close() error {
	_ = l.zap.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
