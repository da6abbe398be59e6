package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oddbit-project/roadwatch/types/callstack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configuration constants
const (
	LogContextKey       = "logger"
	LogTraceIDKey       = "trace_id"
	LogModuleKey        = "module"
	LogComponentKey     = "component"
	LogTimestampFormat  = time.RFC3339Nano
	LogCallerSkipFrames = 2
)

// Logger wraps zerolog.Logger to provide consistent logging patterns
type Logger struct {
	logger     zerolog.Logger
	moduleInfo string
	hostname   string
	traceID    string
}

// LogConfig contains configuration for the logger
type LogConfig struct {
	Level            string `json:"level"`
	Format           string `json:"format"` // "console" or "json"
	IncludeTimestamp bool   `json:"includeTimestamp"`
	IncludeCaller    bool   `json:"includeCaller"`
	CallerSkipFrames int    `json:"callerSkipFrames"`
	OutputToFile     bool   `json:"outputToFile"`
	FilePath         string `json:"filePath"`
	FileMaxSizeMB    int    `json:"fileMaxSizeMB"`
	FileMaxBackups   int    `json:"fileMaxBackups"`
	FileMaxAgeDays   int    `json:"fileMaxAgeDays"`
}

// NewDefaultConfig returns a default logging configuration
func NewDefaultConfig() *LogConfig {
	return &LogConfig{
		Level:            "info",
		Format:           "console",
		IncludeTimestamp: true,
		IncludeCaller:    true,
		CallerSkipFrames: LogCallerSkipFrames,
		OutputToFile:     false,
		FileMaxSizeMB:    100,
		FileMaxBackups:   3,
		FileMaxAgeDays:   28,
	}
}

// EnableFileOutput enables rotated file output on the given config
func EnableFileOutput(cfg *LogConfig, filePath string) *LogConfig {
	cfg.OutputToFile = true
	cfg.FilePath = filePath
	return cfg
}

// Configure configures the global logger based on the provided configuration
func Configure(cfg *LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = LogTimestampFormat

	var output io.Writer
	if cfg.Format == "console" {
		output = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = LogTimestampFormat
		})
	} else {
		output = os.Stderr
	}

	if cfg.OutputToFile && cfg.FilePath != "" {
		fileOutput := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.FileMaxSizeMB,
			MaxBackups: cfg.FileMaxBackups,
			MaxAge:     cfg.FileMaxAgeDays,
		}
		output = zerolog.MultiLevelWriter(output, fileOutput)
	}

	baseLogger := zerolog.New(output).Level(level)

	if cfg.IncludeTimestamp {
		baseLogger = baseLogger.With().Timestamp().Logger()
	}

	if cfg.IncludeCaller {
		baseLogger = baseLogger.With().Caller().Logger()
		zerolog.CallerSkipFrameCount = cfg.CallerSkipFrames
	}

	log.Logger = baseLogger
	return nil
}

// New creates a new logger with module information
func New(module string) *Logger {
	hostname, _ := os.Hostname()

	return &Logger{
		logger:     log.With().Str(LogModuleKey, module).Logger(),
		moduleInfo: module,
		hostname:   hostname,
	}
}

// NewWithComponent creates a new logger with module and component information
func NewWithComponent(module, component string) *Logger {
	hostname, _ := os.Hostname()

	return &Logger{
		logger: log.With().
			Str(LogModuleKey, module).
			Str(LogComponentKey, component).
			Logger(),
		moduleInfo: fmt.Sprintf("%s.%s", module, component),
		hostname:   hostname,
	}
}

// WithTraceID creates a new logger with the specified trace ID
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{
		logger:     l.logger.With().Str(LogTraceIDKey, traceID).Logger(),
		moduleInfo: l.moduleInfo,
		hostname:   l.hostname,
		traceID:    traceID,
	}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger:     l.logger.With().Interface(key, value).Logger(),
		moduleInfo: l.moduleInfo,
		hostname:   l.hostname,
		traceID:    l.traceID,
	}
}

// FromContext retrieves a logger from the context
// If no logger is found, a new default logger is returned
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return New("default")
	}

	logger, ok := ctx.Value(LogContextKey).(*Logger)
	if !ok {
		return New("default")
	}

	return logger
}

// WithContext adds the logger to the context
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, LogContextKey, l)
}

// Debug logs a debug message with the given fields
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	event := l.logger.Debug()
	if len(fields) > 0 {
		for k, v := range fields[0] {
			event = event.Interface(k, v)
		}
	}
	event.Msg(msg)
}

// Info logs an info message with the given fields
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	event := l.logger.Info()
	if len(fields) > 0 {
		for k, v := range fields[0] {
			event = event.Interface(k, v)
		}
	}
	event.Msg(msg)
}

// Warn logs a warning message with the given fields
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	event := l.logger.Warn()
	if len(fields) > 0 {
		for k, v := range fields[0] {
			event = event.Interface(k, v)
		}
	}
	event.Msg(msg)
}

// Error logs an error message with the given fields
// It automatically adds stack information
func (l *Logger) Error(err error, msg string, fields ...map[string]interface{}) {
	event := l.logger.Error()

	if err != nil {
		event = event.Err(err)

		callStack := callstack.GetStackTrace(1)
		if len(callStack) > 0 {
			event = event.Strs("stack", callStack)
		}
	}

	if len(fields) > 0 {
		for k, v := range fields[0] {
			event = event.Interface(k, v)
		}
	}

	event.Msg(msg)
}

// Fatal logs a fatal message with the given fields and exits the application
func (l *Logger) Fatal(err error, msg string, fields ...map[string]interface{}) {
	event := l.logger.Fatal()

	if err != nil {
		event = event.Err(err)
	}

	if len(fields) > 0 {
		for k, v := range fields[0] {
			event = event.Interface(k, v)
		}
	}

	event.Msg(msg)
}

// GetTraceID returns the trace ID associated with this logger
func (l *Logger) GetTraceID() string {
	return l.traceID
}

// GetZerolog returns the underlying zerolog.Logger
func (l *Logger) GetZerolog() zerolog.Logger {
	return l.logger
}
