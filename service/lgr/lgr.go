package lgr

import (
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"
)

// Logger is the process-wide structured logger. JSON records go to a
// rotated file; a copy goes to stderr for interactive runs.
var Logger *slog.Logger

var rotator = &lumberjack.Logger{
	Filename:   "nsfw-go.log",
	MaxSize:    50, // MB
	MaxBackups: 5,
	MaxAge:     7,    // days
	Compress:   true, // compress old logs
}

func init() {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(io.MultiWriter(rotator, os.Stderr), &slog.HandlerOptions{
		Level: level,
	})
	Logger = slog.New(handler)
}
