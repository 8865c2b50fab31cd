package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures the process-wide logger
type LogOptions struct {
	Level      string
	Dir        string // empty disables the log file
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger creates a new slog.Logger with JSON output to stdout and UTC timestamps
func NewLogger(level string) *slog.Logger {
	return slog.New(newHandler(os.Stdout, level))
}

// NewFileLogger creates the process-wide logger. Each process start opens a
// new timestamped file under opts.Dir which is rotated once it reaches
// MaxSizeMB, keeping at most MaxBackups old files. The returned closer
// releases the file and must be called on shutdown.
func NewFileLogger(opts LogOptions) (*slog.Logger, io.Closer, error) {
	if opts.Dir == "" {
		return NewLogger(opts.Level), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", opts.Dir, err)
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, LogFileName(time.Now())),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}

	w := io.MultiWriter(os.Stdout, rotating)
	return slog.New(newHandler(w, opts.Level)), rotating, nil
}

// LogFileName returns the per-start log file name
func LogFileName(start time.Time) string {
	return "cvealert-" + start.Format("2006-01-02_15-04-05") + ".log"
}

func newHandler(w io.Writer, level string) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   a.Key,
					Value: slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano)),
				}
			}
			return a
		},
	})
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
