package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. ENV=dev switches to a human-readable
// console encoder; anything else gets production JSON logging.
func New(service string) *zap.Logger {
	var cfg zap.Config
	if os.Getenv("ENV") == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger so the process can still start.
		logger = zap.NewNop()
	}
	return logger.With(zap.String("service", service))
}
