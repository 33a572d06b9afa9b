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

// Package logging is the progress and diagnostics sink for signing and
// verification.
//
// Core packages never write to stdout or stderr themselves; they accept a
// Logger and fall back to EnsureLogger. Two backends ship here: the
// dependency-light DefaultLogger with text and JSON formatters, and a zap
// adapter used by the command line tool.
package logging

import (
	"fmt"
	"strings"
)

// LogLevel is a message severity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent drops everything.
	LevelSilent
)

var levelNames = map[LogLevel]string{
	LevelDebug:  "debug",
	LevelInfo:   "info",
	LevelWarn:   "warn",
	LevelError:  "error",
	LevelSilent: "silent",
}

func (l LogLevel) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "unknown"
}

// ParseLogLevel maps a name to a level. Unknown names map to LevelInfo; use
// ParseLogLevelStrict to reject them.
func ParseLogLevel(s string) LogLevel {
	l, err := ParseLogLevelStrict(s)
	if err != nil {
		return LevelInfo
	}
	return l
}

// ParseLogLevelStrict is ParseLogLevel with an error for unknown names.
func ParseLogLevelStrict(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "none", "off":
		return LevelSilent, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// LogFormat selects the DefaultLogger formatter.
type LogFormat int

const (
	FormatText LogFormat = iota
	FormatJSON
)

func (f LogFormat) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	}
	return "unknown"
}

// ParseLogFormat maps "json" to FormatJSON and anything else to FormatText.
func ParseLogFormat(s string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is the leveled, structured logging interface consumed by every
// package in this module.
type Logger interface {
	Debug(format string, args ...interface{})
	Debugln(msg string)
	Info(format string, args ...interface{})
	Infoln(msg string)
	Warn(format string, args ...interface{})
	Warnln(msg string)
	Error(format string, args ...interface{})
	Errorln(msg string)

	GetLevel() LogLevel
	// Silent reports whether debug output is suppressed.
	Silent() bool

	// WithField and WithFields return derived loggers; the receiver is
	// left unchanged.
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Default returns an info-level DefaultLogger on stderr.
func Default() Logger {
	return NewLogger(false)
}

// EnsureLogger returns l, or Default() when l is nil.
func EnsureLogger(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}

// Discard returns a logger that drops every message.
func Discard() Logger {
	return NewLoggerWithOptions(LoggerOptions{Level: LevelSilent})
}
