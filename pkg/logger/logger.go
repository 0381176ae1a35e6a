// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger configures the process-wide zap logger and hands out named
// sugared loggers per component.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the encoder used for log output.
type Format string

const (
	// FormatPretty prints one short, human-readable line per entry.
	FormatPretty Format = "PRETTY"
	// FormatConsole uses the zap console encoder.
	FormatConsole Format = "CONSOLE"
	// FormatJSON emits structured JSON.
	FormatJSON Format = "JSON"
)

const (
	envLevel  = "LOGGING_LEVEL"
	envFormat = "LOGGING_FORMAT"
)

var (
	initOnce    sync.Once
	initialized bool
)

// parseLevel accepts the usual zap level names plus PRODUCTION as an alias for INFO.
func parseLevel(level string) zapcore.Level {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "PRODUCTION" || level == "" {
		return zapcore.InfoLevel
	}

	parsed, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}

	return parsed
}

func parseFormat(format string, fallback Format) Format {
	switch f := Format(strings.ToUpper(strings.TrimSpace(format))); f {
	case FormatPretty, FormatConsole, FormatJSON:
		return f
	default:
		return fallback
	}
}

// New builds a logger writing to stdout with the given level and format.
func New(level string, format Format) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder

	switch format {
	case FormatPretty:
		encoder = newPrettyEncoder(encoderConfig)
	case FormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(parseLevel(level)))

	return zap.New(core, zap.AddCaller())
}

// Initialize replaces the zap globals with a logger configured from
// LOGGING_LEVEL and LOGGING_FORMAT. Subsequent calls are no-ops.
func Initialize() {
	initOnce.Do(func() {
		level := os.Getenv(envLevel)
		format := parseFormat(os.Getenv(envFormat), FormatPretty)

		l := New(level, format)
		l.Info("Logger initialized", zap.String("level", parseLevel(level).String()), zap.String("format", string(format)))

		zap.ReplaceGlobals(l)

		initialized = true
	})
}

// GetSugaredLogger returns the global sugared logger, initializing it if needed.
func GetSugaredLogger() *zap.SugaredLogger {
	if !initialized {
		Initialize()
	}

	return zap.S()
}

// For returns a logger named after the component.
func For(component string) *zap.SugaredLogger {
	return GetSugaredLogger().Named(component)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return zap.L().Sync()
}
