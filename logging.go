// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castra

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig is the logging portion of the application configuration,
// found under the "logging" key.
type LoggingConfig struct {
	// Level is the minimum enabled level, e.g. "debug" or "warn". If unset,
	// the mode's default is used.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Encoding is either "json" or "console". If unset, the mode's default is used.
	Encoding string `json:"encoding" yaml:"encoding" mapstructure:"encoding"`
}

// NewLogger builds the zap logger for a mode. Test mode always produces a
// no-op logger.
func NewLogger(m Mode, lc LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	switch m {
	case Test:
		return zap.NewNop(), nil

	case Dev:
		zc = zap.NewDevelopmentConfig()

	default:
		zc = zap.NewProductionConfig()
	}

	if len(lc.Level) > 0 {
		level, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}

		zc.Level = zap.NewAtomicLevelAt(level)
	}

	if len(lc.Encoding) > 0 {
		zc.Encoding = lc.Encoding
	}

	return zc.Build()
}

// fxLogger routes fx's own events through the application's zap logger.
func fxLogger(l *zap.Logger) fx.Option {
	return fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: l}
	})
}
