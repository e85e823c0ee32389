package utils

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	once sync.Once
)

// loggerConfig assembles the zap configuration for the engine. Debug
// mode lowers the level and turns sampling off; the mempool feed logs
// per transaction at debug, and sampling would silently drop most of
// it.
func loggerConfig(debug bool) zap.Config {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.StacktraceKey = "stacktrace"

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         "json",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stdout", "flasharb.log"},
		ErrorOutputPaths: []string{"stderr", "flasharb-error.log"},
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Sampling = nil
	}
	return cfg
}

// InitLogger builds the process-wide logger once. Later calls return
// the first instance regardless of the debug flag.
func InitLogger(debug bool) *zap.Logger {
	once.Do(func() {
		logger, err := loggerConfig(debug).Build(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		if err != nil {
			panic(err)
		}
		log = logger.Named("flasharb")
	})

	return log
}

// GetLogger returns the shared logger, initializing it at info level
// if nothing has yet.
func GetLogger() *zap.Logger {
	if log == nil {
		return InitLogger(false)
	}
	return log
}

// CleanupLogger flushes buffered entries on shutdown.
func CleanupLogger() {
	if log != nil {
		_ = log.Sync()
	}
}
