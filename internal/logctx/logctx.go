// Context-carried structured logging. Components never hold a logger field,
// they extract one from the context they were started with.
package logctx

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// loglevel
//
// Integer for printing increasingly detailed information as program progresses
//
//	0 - None: quiet (prints nothing but errors)
//	1 - Standard: normal progress messages
//	2 - Progress: more progress messages
//	3 - Debug: shows data being processed
const (
	VerbosityNone     int = 0
	VerbosityStandard int = 1
	VerbosityProgress int = 2
	VerbosityDebug    int = 3
)

// Logger Constructor.
// Builds a console zap logger at the mapped verbosity level.
func New(id string, logLevel int) (logger *zap.Logger) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(mapLevel(logLevel))

	logger, err := cfg.Build()
	if err != nil {
		// Config above is static, Build cannot fail on it
		logger = zap.NewNop()
	}
	logger = logger.Named(id)
	return
}

// Embeds logger in returned context using provided context as base
func WithLogger(ctx context.Context, logger *zap.Logger) (ctxLogger context.Context) {
	ctxLogger = context.WithValue(ctx, ctxKey{}, logger)
	return
}

// Extracts logger from context or returns a nop logger
func From(ctx context.Context) (logger *zap.Logger) {
	logger, ok := ctx.Value(ctxKey{}).(*zap.Logger)
	if ok {
		return
	}
	logger = zap.NewNop()
	return
}

func mapLevel(logLevel int) (level zapcore.Level) {
	switch {
	case logLevel <= VerbosityNone:
		level = zapcore.ErrorLevel
	case logLevel == VerbosityStandard:
		level = zapcore.InfoLevel
	case logLevel == VerbosityProgress:
		level = zapcore.InfoLevel
	default:
		level = zapcore.DebugLevel
	}
	return
}
