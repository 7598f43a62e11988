// Package util hosts small shared helpers with no domain knowledge.
package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process root logger at the requested level.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// SymbolLogger derives a child logger scoped to one trading symbol so every
// line an engine emits carries its symbol context.
func SymbolLogger(log zerolog.Logger, symbol string) zerolog.Logger {
	return log.With().Str("symbol", symbol).Logger()
}
