// Package logger holds the process-wide zap logger.
//
// Output is JSON unless the format is "console". The level lives in a
// zap.AtomicLevel; operators with user management rights can read and
// change it through GET/PUT /api/log/level.
//
// Import Path: supportportal.io/portal/internal/pkg/logger
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// serviceName is attached to every entry.
const serviceName = "portal"

var (
	global      *zap.Logger
	atomicLevel = zap.NewAtomicLevel()
	once        sync.Once
)

func buildConfig(format string) zap.Config {
	if format == "console" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// Init sets up the global logger once. level is one of debug, info, warn,
// error; format is json or console. Later calls are no-ops.
func Init(level, format string) error {
	var initErr error
	once.Do(func() {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", level, err)
			return
		}
		atomicLevel.SetLevel(lvl)

		cfg := buildConfig(format)
		cfg.Level = atomicLevel
		built, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global = built.With(zap.String("service", serviceName))
	})
	return initErr
}

// SetLevel changes the level at runtime. An unknown level leaves it as is.
func SetLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	atomicLevel.SetLevel(lvl)
	return nil
}

func GetLevel() zapcore.Level {
	return atomicLevel.Level()
}

// L returns the global logger. It panics before Init.
func L() *zap.Logger {
	if global == nil {
		panic("logger: Init must be called before L")
	}
	return global
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// LevelHandler serves the level as JSON: GET reads it, PUT {"level":"debug"} sets it.
func LevelHandler() *zap.AtomicLevel {
	return &atomicLevel
}

// Sync flushes buffered entries. It is safe before Init.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
