package main

import (
	"fmt"

	"go.uber.org/zap"
)

// newLogger: JSON (produção) por padrão, "console" para desenvolvimento.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	var zc zap.Config
	switch format {
	case "", "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (json, console)", format)
	}
	zc.Level = lvl

	return zc.Build()
}
