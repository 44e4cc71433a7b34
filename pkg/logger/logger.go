// Package logger builds the application's structured zap logger and the
// domain-specific field helpers used across the monitoring and settlement
// paths.
package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger.
//
// level: "debug", "info", "warn", "error" (default "info").
// format: "json" or "console" (default "json").
// serviceName is attached as a global field when non-empty.
func New(level, format, serviceName string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	base, err := config.Build()
	if err != nil {
		return nil, err
	}

	if serviceName != "" {
		base = base.With(zap.String("service", serviceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		base = base.With(zap.String("hostname", hostname))
	}

	return base, nil
}

// NewNop returns a no-op logger for tests.
func NewNop() *zap.Logger { return zap.NewNop() }

// Field helpers for the classroom domain.
func SessionID(id string) zap.Field      { return zap.String("session_id", id) }
func ParticipantID(id string) zap.Field  { return zap.String("participant_id", id) }
func ClassID(id string) zap.Field        { return zap.String("class_id", id) }
func ConnectionID(id string) zap.Field   { return zap.String("connection_id", id) }
func EventType(t string) zap.Field       { return zap.String("event_type", t) }
func FocusRate(pct int) zap.Field        { return zap.Int("focus_rate", pct) }
func XPAmount(xp int) zap.Field          { return zap.Int("xp_amount", xp) }
func Window(s, e time.Time) zap.Field    { return zap.String("window", s.Format(time.RFC3339)+".."+e.Format(time.RFC3339)) }
func Component(name string) zap.Field    { return zap.String("component", name) }
func Topic(name string) zap.Field        { return zap.String("topic", name) }
