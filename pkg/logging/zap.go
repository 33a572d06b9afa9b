// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*ZapLogger)(nil)

// ZapLogger adapts a *zap.Logger to Logger.
type ZapLogger struct {
	z     *zap.Logger
	sugar *zap.SugaredLogger
	level LogLevel
}

// NewZapLogger wraps z. level is what GetLevel and Silent report; filtering
// itself is left to z's core.
func NewZapLogger(z *zap.Logger, level LogLevel) *ZapLogger {
	return &ZapLogger{z: z, sugar: z.Sugar(), level: level}
}

// NewZap builds a stderr zap logger. format is "json" or "console"
// ("text" is accepted as console). level "silent" yields a no-op core.
func NewZap(level, format string) (*ZapLogger, error) {
	lvl, err := ParseLogLevelStrict(level)
	if err != nil {
		return nil, err
	}
	if lvl == LevelSilent {
		return NewZapLogger(zap.NewNop(), LevelSilent), nil
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "text", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q, must be 'json' or 'console'", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(lvl))
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return NewZapLogger(z, lvl), nil
}

func toZapLevel(l LogLevel) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// Zap returns the underlying logger.
func (l *ZapLogger) Zap() *zap.Logger { return l.z }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error { return l.z.Sync() }

func (l *ZapLogger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Debugln(msg string)                       { l.z.Debug(msg) }
func (l *ZapLogger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Infoln(msg string)                        { l.z.Info(msg) }
func (l *ZapLogger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Warnln(msg string)                        { l.z.Warn(msg) }
func (l *ZapLogger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Errorln(msg string)                       { l.z.Error(msg) }

// GetLevel implements Logger.
func (l *ZapLogger) GetLevel() LogLevel { return l.level }

// Silent implements Logger.
func (l *ZapLogger) Silent() bool { return l.level > LevelDebug }

// WithField implements Logger.
func (l *ZapLogger) WithField(key string, value interface{}) Logger {
	return NewZapLogger(l.z.With(zap.Any(key, value)), l.level)
}

// WithFields implements Logger.
func (l *ZapLogger) WithFields(fields map[string]interface{}) Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return NewZapLogger(l.z.With(zf...), l.level)
}
