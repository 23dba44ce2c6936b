// Package logging builds the service logger on top of zap.
package logging

import (
	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns an ectologger that writes structured entries through zap.
func New(appName, level string, pretty bool) (ectologger.Logger, func(), error) {
	zapConfig := zap.NewProductionConfig()
	if pretty {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(parsed)
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	zapLogger = zapLogger.Named(appName)

	logger := ectologger.NewEctoLogger(func(message ectologger.EctoLogMessage) {
		zapLogger.Info("", zap.Any("entry", message))
	})

	flush := func() {
		_ = zapLogger.Sync()
	}
	return logger, flush, nil
}
