package logger

import (
	"log/slog"
	"os"
)

// New returns the shared structured logger. JSON output so log shippers can
// index fields without parsing.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
