// Package sl содержит вспомогательные функции для работы с логгером slog:
// настройку логгера по окружению и единообразные атрибуты для ошибок и операций.
package sl

import (
	"io"
	"log/slog"
)

const (
	envLocal = "local"
	envTest  = "test"
)

// Setup создаёт логгер для окружения env. В local и test пишется debug,
// в остальных окружениях info в формате JSON.
func Setup(env string, w io.Writer) *slog.Logger {
	switch env {
	case envLocal, envTest:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op атрибут с именем операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}
