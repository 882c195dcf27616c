package container

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vivekverma239/superfast-ai/config"
)

// NewLogger builds a zap logger from the log section.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zapConfig.OutputPaths = cfg.OutputPaths
	}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	return zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
