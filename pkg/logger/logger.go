package logger

import (
	"time"

	"github.com/mahalnishan/crm/pkg/config"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *zap.Logger

// InitLogger initializes the global logger with configuration
func InitLogger(cfg *config.Config) error {
	// Configure logger based on configured log level
	var level zapcore.Level
	switch cfg.Log.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Server.Env == "production" {
		// Production logger configuration
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		// Development logger configuration with colors and human-friendly output
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	built, err := zapConfig.Build(zap.Fields(cfg.LogConfig()...))
	if err != nil {
		return err
	}

	if cfg.Log.File != "" {
		built = built.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore(cfg.Log, zapConfig.Level).With(cfg.LogConfig()))
		}))
	}

	log = built
	zap.ReplaceGlobals(log)
	return nil
}

// fileCore writes JSON entries to a size-rotated file
func fileCore(cfg config.LogConfig, level zap.AtomicLevel) zapcore.Core {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	writer := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(writer), level)
}

// GetLogger returns the global logger instance, or zap's global logger
// when InitLogger has not run (tests, tools).
func GetLogger() *zap.Logger {
	if log == nil {
		return zap.L()
	}
	return log
}

// Sync flushes buffered entries; errors from syncing stdout are ignored
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// Middleware returns an Echo middleware that logs HTTP requests
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// let the error handler write the response so the status is known
				c.Error(err)
			}

			fields := []zapcore.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
				zap.String("user_agent", c.Request().UserAgent()),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			ctxLogger := FromContext(c)
			switch status := c.Response().Status; {
			case status >= 500:
				ctxLogger.Error("HTTP request failed", fields...)
			case status >= 400:
				ctxLogger.Warn("HTTP request rejected", fields...)
			default:
				ctxLogger.Info("HTTP request completed", fields...)
			}

			return nil
		}
	}
}
