/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the slog backend of the operator and exposes it to
// controller-runtime as a logr.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

const (
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvLogAddSource = "LOG_ADD_SOURCE"

	FormatJSON = "json"
	FormatText = "text"

	DefaultLogLevel  = slog.LevelInfo
	DefaultLogFormat = FormatJSON

	redacted = "[REDACTED]"
)

// Config holds the logging configuration
type Config struct {
	Level     slog.Level
	Format    string
	AddSource bool

	// Output defaults to os.Stderr
	Output io.Writer
}

// sensitiveKeys contains substrings of field names whose values are redacted
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"accesskey",
	"access_key",
	"credential",
	"auth",
}

// LoadConfig loads logging configuration from environment variables
func LoadConfig() Config {
	cfg := Config{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Level = parseLevel(level)
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		cfg.Format = strings.ToLower(format)
	}

	addSource, set := os.LookupEnv(EnvLogAddSource)
	if set && addSource != "" {
		cfg.AddSource = strings.EqualFold(addSource, "true")
	} else if cfg.Level == slog.LevelDebug {
		cfg.AddSource = true
	}

	return cfg
}

// LoadConfigWithFlags loads configuration with command-line flag overrides.
// Flags take precedence over environment variables; empty flags are ignored.
func LoadConfigWithFlags(levelFlag, formatFlag string, addSourceFlag *bool) Config {
	cfg := LoadConfig()

	if levelFlag != "" {
		cfg.Level = parseLevel(levelFlag)
	}
	if formatFlag != "" {
		cfg.Format = strings.ToLower(formatFlag)
	}

	switch {
	case addSourceFlag != nil:
		cfg.AddSource = *addSourceFlag
	case cfg.Level == slog.LevelDebug && os.Getenv(EnvLogAddSource) == "":
		cfg.AddSource = true
	}

	return cfg
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts a flag value to slog.Level, defaulting to info
func LevelFromString(s string) slog.Level {
	return parseLevel(s)
}

// NewHandler creates a new slog.Handler based on the configuration
func NewHandler(cfg Config) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactSensitiveData,
	}

	if cfg.Format == FormatText {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// NewLogr returns a logr.Logger backed by the slog handler of cfg, for use
// with ctrl.SetLogger. logr V(n) maps to slog level -n, so V(1) is debug.
func NewLogr(cfg Config) logr.Logger {
	return logr.FromSlogHandler(NewHandler(cfg))
}

// SetupLogger initializes the global slog logger and returns it
func SetupLogger(cfg Config) *slog.Logger {
	logger := slog.New(NewHandler(cfg))
	slog.SetDefault(logger)
	return logger
}

// redactSensitiveData replaces sensitive field values with [REDACTED]
func redactSensitiveData(_ []string, a slog.Attr) slog.Attr {
	keyLower := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return slog.String(a.Key, redacted)
		}
	}

	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String(slog.TimeKey, t.Format(time.RFC3339))
		}
	}

	return a
}
