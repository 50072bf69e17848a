package utils

import (
	"context"
	"log/slog"
)

func logAt(level slog.Level, e error, args []any) {
	if e == nil {
		return
	}
	slog.Default().Log(context.Background(), level, e.Error(), args...)
}

// Loge logs a non nil error with optional key/value attributes.
func Loge(e error, args ...any) {
	logAt(slog.LevelError, e, args)
}

func Logwe(e error, args ...any) {
	logAt(slog.LevelWarn, e, args)
}

func Logde(e error, args ...any) {
	logAt(slog.LevelDebug, e, args)
}
