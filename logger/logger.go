// Package logger связывает отладочный вывод протокольных пакетов с
// zerolog. Слои OSI зависят только от интерфейса Logger и остаются
// без внешних зависимостей, реализацию им отдаёт NewLogger
package logger

import (
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Logger интерфейс для логирования пакетов всех уровней OSI
type Logger interface {
	Debug(format string, v ...any)
}

// zerologLogger реализует Logger поверх zerolog, категория пишется
// в поле layer
type zerologLogger struct {
	logger zerolog.Logger
}

// NewLogger создает логгер указанной категории поверх глобального
// логгера zerolog
func NewLogger(category string) Logger {
	return NewWithLogger(zlog.Logger, category)
}

// NewWithLogger создает логгер указанной категории поверх конкретного
// zerolog.Logger
func NewWithLogger(logger zerolog.Logger, category string) Logger {
	if category != "" {
		logger = logger.With().Str("layer", category).Logger()
	}
	return &zerologLogger{logger: logger}
}

func (l *zerologLogger) Debug(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}

// Nop возвращает логгер, отбрасывающий все сообщения
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
