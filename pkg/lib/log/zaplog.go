// Copyright (c) 2022 DeBank Inc. <admin@debank.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package log

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The logger is swapped atomically because finalizers log from their own
// goroutine while tests may replace it.
var logger atomic.Pointer[zap.Logger]

func init() {
	ProductionModeWithoutStackTrace()
}

func DevelopmentMode() {
	buildLoggerWithConfig(zap.NewDevelopmentConfig())
}

func DevelopmentModeWithoutStackTrace() {
	config := zap.NewDevelopmentConfig()
	config.DisableStacktrace = true

	buildLoggerWithConfig(config)
}

func ProductionModeWithoutStackTrace() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	config.DisableStacktrace = true

	buildLoggerWithConfig(config)
}

// QuietMode only lets warnings and errors through; the CLI uses it so that
// command output is not interleaved with lifecycle records.
func QuietMode() {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	config.DisableStacktrace = true

	buildLoggerWithConfig(config)
}

func buildLoggerWithConfig(config zap.Config) {
	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic("init zap logger: " + err.Error())
	}
	logger.Store(zapLogger)
}

// ReplaceLogger installs l (wrapped with the package caller skip) and returns
// a function restoring the previous logger.
func ReplaceLogger(l *zap.Logger) (restore func()) {
	prev := logger.Swap(l.WithOptions(zap.AddCallerSkip(1)))
	return func() {
		logger.Store(prev)
	}
}

func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

// Store names the store a record is about.
func Store(name string) zap.Field {
	return zap.String("store", name)
}

// Handle carries the runtime id of a store handle.
func Handle(id string) zap.Field {
	return zap.String("handle", id)
}

// Engine names the storage engine backing a handle.
func Engine(name string) zap.Field {
	return zap.String("engine", name)
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger.Load().WithOptions(zap.AddCallerSkip(-1))
}

func Info(msg string, fields ...zap.Field) {
	logger.Load().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Load().Warn(msg, fields...)
}

// Error ...
func Error(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	logger.Load().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	logger.Load().Debug(msg, fields...)
}

// Fatal ...
func Fatal(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	logger.Load().Fatal(msg, fields...)
}
