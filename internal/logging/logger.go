package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "NETDIAG_LOG_LEVEL"

// maxFrameLog caps how much of a push frame is copied into a log entry
const maxFrameLog = 512

// ParseLevel converts a level name to a zap level.
// Unknown names map to info, as an explicit but unrecognised level still
// signals that the user wants output.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Initialize creates a new logger with the specified level.
// If level is empty, it checks the NETDIAG_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
// When logFile is non-empty, output is appended to that file instead of stderr.
func Initialize(level, logFile string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		SetLogger(zap.NewNop())
		return nil
	}

	output := "stderr"
	encodeLevel := zapcore.CapitalColorLevelEncoder
	if logFile != "" {
		output = logFile
		encodeLevel = zapcore.CapitalLevelEncoder
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = encodeLevel
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	built, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	SetLogger(built)
	return nil
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Sync flushes buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogConnection logs a push channel link event
func LogConnection(origin string, event string) {
	Info("Connection event",
		zap.String("origin", origin),
		zap.String("event", event),
	)
}

// LogHTTPRequest logs an outgoing backend request
func LogHTTPRequest(requestID, method, path string) {
	Debug("HTTP request sent",
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
	)
}

// LogHTTPResponse logs a backend response
func LogHTTPResponse(requestID string, statusCode int, elapsed time.Duration) {
	Debug("HTTP response received",
		zap.String("request_id", requestID),
		zap.Int("status_code", statusCode),
		zap.Duration("elapsed", elapsed),
	)
}

// LogWebSocketMessage logs a push channel frame
func LogWebSocketMessage(origin string, direction string, messageType int, data []byte) {
	fields := []zap.Field{
		zap.String("origin", origin),
		zap.String("direction", direction),
		zap.String("message_type", wsMessageTypeName(messageType)),
		zap.Int("length", len(data)),
	}

	if messageType == 1 {
		fields = append(fields, zap.String("content", truncate(data, maxFrameLog)))
	}

	Debug("WebSocket message", fields...)
}

// LogDispatch logs the outcome of one dispatcher run.
// Failures are logged at warn level and never propagated further.
func LogDispatch(dispatchID, operation string, err error) {
	if err != nil {
		Warn("Dispatch failed",
			zap.String("dispatch_id", dispatchID),
			zap.String("operation", operation),
			zap.Error(err),
		)
		return
	}
	Info("Dispatch succeeded",
		zap.String("dispatch_id", dispatchID),
		zap.String("operation", operation),
	)
}

func wsMessageTypeName(msgType int) string {
	switch msgType {
	case 1:
		return "text"
	case 2:
		return "binary"
	case 8:
		return "close"
	case 9:
		return "ping"
	case 10:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", msgType)
	}
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
