package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chesed/internal/config"
)

// New builds the process logger from LOG_LEVEL and LOG_FORMAT. Unknown levels
// fall back to info. Every entry carries the service name, the environment
// and the hostname.
func New(cfg *config.Config, serviceName string) (*zap.Logger, error) {
	zc := zapConfig(cfg.LogLevel, cfg.LogFormat)
	base, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return base.With(baseFields(serviceName, cfg.AppEnv)...), nil
}

func zapConfig(level, format string) zap.Config {
	var zc zap.Config
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.OutputPaths = []string{"stdout"}
		zc.ErrorOutputPaths = []string{"stderr"}
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	zc.Level = lvl
	return zc
}

func baseFields(serviceName, env string) []zap.Field {
	fields := []zap.Field{zap.String("service_name", serviceName), zap.String("env", env)}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields = append(fields, zap.String("hostname", hostname))
	}
	return fields
}
