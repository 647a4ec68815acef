// Package observability wires up structured logging and metrics shared
// by the worker, sync, and aggregator binaries.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	// Parse log level
	parsedLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		parsedLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsedLevel)

	// JSON encoder for structured logs
	config.Encoding = "json"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

func NewDevelopmentLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, _ := config.Build()
	return logger
}

// GetLoggerFromEnv builds the process-wide logger, honoring GO_ENV for
// a human-readable development encoder and otherwise the given level.
func GetLoggerFromEnv(component, level string) *zap.Logger {
	var logger *zap.Logger
	if os.Getenv("GO_ENV") == "development" {
		logger = NewDevelopmentLogger()
	} else {
		var err error
		logger, err = NewLogger(level)
		if err != nil {
			logger = NewDevelopmentLogger()
		}
	}
	return logger.With(zap.String("component", component))
}
