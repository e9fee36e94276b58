package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	logFile *lumberjack.Logger
)

// NewLogger logs to stdout and to a rotating file under logDir. An empty name
// picks a timestamped file.
func NewLogger(debug bool, logDir, name string) (*slog.Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating log directory: %w", err)
	}
	if name == "" {
		name = fmt.Sprintf("afkbot-%s.txt", time.Now().Format("2006-01-02-15-04-05"))
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, name),
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.TimeOnly))
			}
			return a
		},
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), opts)
	return slog.New(handler), nil
}

// FlushLog syncs stdout. The file handler writes through.
func FlushLog() {
	_ = os.Stdout.Sync()
}

func FlushAndClose() {
	FlushLog()

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
