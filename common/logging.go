package common

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GetLogger returns a sugared logger writing to stderr, so that stdout stays
// free for freeze summaries and report listings.
func GetLogger(debug, prod bool) *zap.SugaredLogger {
	var logger *zap.Logger
	zapLevel := zap.NewAtomicLevel()
	if debug {
		zapLevel.SetLevel(zap.DebugLevel)
	}
	if prod {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		logger = zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(os.Stderr),
			zapLevel,
		))
	} else {
		logger = zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			zapLevel,
		))
	}
	return logger.Sugar()
}

// NopLogger is used by tests and library callers that don't care about logs.
func NopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
