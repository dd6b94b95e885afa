// SPDX-License-Identifier: ice License 1.0

package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Field = zap.Field
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

//nolint:gochecknoglobals // Single process wide logger, same as stdlib log.
var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newLogger(zapcore.Lock(zapcore.AddSync(stderr{})))
)
