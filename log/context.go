package log

import (
	"context"

	"github.com/google/uuid"
)

// ContextFields is a map of fields to add to log messages
type ContextFields map[string]interface{}

// NewTraceID generates a new trace ID for correlating log records
func NewTraceID() string {
	return uuid.New().String()
}

// NewConnContext creates a new context with a logger carrying a fresh trace ID;
// used to track a single client connection through the protocol loop
func NewConnContext(parentCtx context.Context, moduleName string) (context.Context, *Logger) {
	traceID := NewTraceID()
	logger := New(moduleName).WithTraceID(traceID)
	ctx := logger.WithContext(parentCtx)
	return ctx, logger
}

// WithFields adds multiple fields to the logger in the context and returns the updated context
func WithFields(ctx context.Context, fields ContextFields) context.Context {
	logger := FromContext(ctx)

	for k, v := range fields {
		logger = logger.WithField(k, v)
	}

	return logger.WithContext(ctx)
}

// Debug logs a debug message with the logger from the context
func Debug(ctx context.Context, msg string, fields ...ContextFields) {
	logger := FromContext(ctx)
	if len(fields) > 0 {
		logger.Debug(msg, fields[0])
	} else {
		logger.Debug(msg)
	}
}

// Info logs an info message with the logger from the context
func Info(ctx context.Context, msg string, fields ...ContextFields) {
	logger := FromContext(ctx)
	if len(fields) > 0 {
		logger.Info(msg, fields[0])
	} else {
		logger.Info(msg)
	}
}

// Warn logs a warning message with the logger from the context
func Warn(ctx context.Context, msg string, fields ...ContextFields) {
	logger := FromContext(ctx)
	if len(fields) > 0 {
		logger.Warn(msg, fields[0])
	} else {
		logger.Warn(msg)
	}
}

// Error logs an error message with the logger from the context
func Error(ctx context.Context, err error, msg string, fields ...ContextFields) {
	logger := FromContext(ctx)
	if len(fields) > 0 {
		logger.Error(err, msg, fields[0])
	} else {
		logger.Error(err, msg)
	}
}
