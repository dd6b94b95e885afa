// SPDX-License-Identifier: ice License 1.0

package log

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type stderr struct{}

func (stderr) Write(p []byte) (int, error) {
	return os.Stderr.Write(p) //nolint:wrapcheck // Proxy.
}

func newLogger(out zapcore.WriteSyncer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), out, level)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.PanicLevel))
}

// SetLevel changes the minimum level for every logger in the process.
func SetLevel(lvl string) error {
	parsed, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return errors.Wrapf(err, "invalid log level `%v`", lvl)
	}
	level.SetLevel(parsed)

	return nil
}

// SetOutput redirects the logs, mostly for tests.
func SetOutput(w io.Writer) {
	logger = newLogger(zapcore.Lock(zapcore.AddSync(w)))
}

func Debug(msg string, fields ...Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	logger.Warn(msg, fields...)
}

func Error(err error, fields ...Field) {
	if err == nil {
		return
	}
	logger.Error(err.Error(), fields...)
}

func Panic(err error, fields ...Field) {
	logger.Panic(fmt.Sprintf("%+v", err), fields...)
}

func Sync() error {
	return errors.Wrap(logger.Sync(), "failed to sync logger")
}

func String(key, val string) Field {
	return zap.String(key, val)
}

func Int(key string, val int) Field {
	return zap.Int(key, val)
}

func Any(key string, val any) Field {
	return zap.Any(key, val)
}
