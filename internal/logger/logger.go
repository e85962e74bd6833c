package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New() *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	opts := []zap.Option{
		zap.AddStacktrace(zap.ErrorLevel),
	}

	if strings.ToLower(os.Getenv("FINQ_ENV")) == "dev" {
		logger, err = zap.NewDevelopment(opts...)
	} else {
		opts = append(opts, zap.Fields(zap.Field{
			Key:    "FINQ_ENV",
			Type:   zapcore.StringType,
			String: os.Getenv("FINQ_ENV"),
		}))
		logger, err = zap.NewProduction(opts...)
	}

	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}

	return logger.Sugar()
}

type contextKey string

const ContextKey contextKey = "LOGGER"

func AddToContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ContextKey, l)
}

func FromContext(ctx context.Context) *zap.SugaredLogger {
	l, ok := ctx.Value(ContextKey).(*zap.SugaredLogger)
	if !ok {
		l = New()
		l.Warn("no logger found in ctx - creating new one")
	}
	return l
}

func Debug(template string, args ...interface{}) {
	zap.S().Debugf(template, args...)
}

func Info(template string, args ...interface{}) {
	zap.S().Infof(template, args...)
}

func Warn(template string, args ...interface{}) {
	zap.S().Warnf(template, args...)
}

func Error(err error) {
	zap.S().Error(err)
}

func Fatal(err error) {
	zap.S().Fatal(err)
}

func init() {
	logger := New()
	zap.ReplaceGlobals(logger.Desugar())
}
