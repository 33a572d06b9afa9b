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
	"io"
	"os"
	"sync"
	"time"
)

var _ Logger = (*DefaultLogger)(nil)

// LoggerOptions configures NewLoggerWithOptions.
type LoggerOptions struct {
	Level LogLevel
	// Format is ignored when Formatter is set.
	Format    LogFormat
	Formatter Formatter
	// Output defaults to os.Stderr so stdout stays free for reports.
	Output     io.Writer
	TimeFormat string
	ShowLevel  bool
}

// DefaultLogger writes formatted entries to an io.Writer. Derived loggers
// share the writer and its lock.
type DefaultLogger struct {
	state     *sharedState
	level     LogLevel
	formatter Formatter
	fields    map[string]interface{}
}

type sharedState struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewLogger returns a text logger on stderr at debug level when verbose,
// info otherwise.
func NewLogger(verbose bool) *DefaultLogger {
	level := LevelInfo
	if verbose {
		level = LevelDebug
	}
	return NewLoggerWithOptions(LoggerOptions{Level: level})
}

// NewLoggerWithOptions builds a DefaultLogger from opts.
func NewLoggerWithOptions(opts LoggerOptions) *DefaultLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	formatter := opts.Formatter
	if formatter == nil {
		if opts.Format == FormatJSON {
			formatter = &JSONFormatter{TimeFormat: opts.TimeFormat}
		} else {
			formatter = &TextFormatter{TimeFormat: opts.TimeFormat, ShowLevel: opts.ShowLevel}
		}
	}
	return &DefaultLogger{
		state:     &sharedState{out: out, now: time.Now},
		level:     opts.Level,
		formatter: formatter,
	}
}

// WithFields implements Logger.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &DefaultLogger{state: l.state, level: l.level, formatter: l.formatter, fields: merged}
}

// WithField implements Logger.
func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// GetLevel implements Logger.
func (l *DefaultLogger) GetLevel() LogLevel {
	return l.level
}

// Silent implements Logger.
func (l *DefaultLogger) Silent() bool {
	return l.level > LevelDebug
}

// Enabled reports whether a message at level would be written.
func (l *DefaultLogger) Enabled(level LogLevel) bool {
	return level >= l.level && l.level != LevelSilent
}

func (l *DefaultLogger) write(level LogLevel, msg string) {
	if !l.Enabled(level) {
		return
	}
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	data, err := l.formatter.Format(LogEntry{
		Timestamp: l.state.now(),
		Level:     level,
		Message:   msg,
		Fields:    l.fields,
	})
	if err != nil {
		fmt.Fprintf(l.state.out, "logging error: %v\n", err)
		return
	}
	_, _ = l.state.out.Write(data)
}

func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugln(msg string) { l.write(LevelDebug, msg) }

func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Infoln(msg string) { l.write(LevelInfo, msg) }

func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Warnln(msg string) { l.write(LevelWarn, msg) }

func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.write(LevelError, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Errorln(msg string) { l.write(LevelError, msg) }
