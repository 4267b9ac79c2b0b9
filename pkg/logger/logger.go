package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
	EnvironmentLocal       = "local"
)

// Config selects the logger profile. An empty Level falls back to the
// environment default: debug for development/local, info otherwise.
type Config struct {
	Environment string
	Level       string
}

// New builds a JSON logger writing to stderr. Stdout is reserved for
// reports.
func New(cfg Config) (*zap.Logger, error) {
	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	if env == "" {
		env = EnvironmentProduction
	}

	var base zap.Config
	switch env {
	case EnvironmentDevelopment, EnvironmentLocal:
		base = zap.NewDevelopmentConfig()
	case EnvironmentProduction:
		base = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log environment %q", cfg.Environment)
	}

	level, err := resolveLevel(env, cfg.Level)
	if err != nil {
		return nil, err
	}

	base.Level = level
	base.Encoding = "json"
	base.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	base.DisableStacktrace = true
	base.OutputPaths = []string{"stderr"}
	base.ErrorOutputPaths = []string{"stderr"}

	built, err := base.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return built, nil
}

func resolveLevel(env, level string) (zap.AtomicLevel, error) {
	if strings.TrimSpace(level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(level); err != nil {
			return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		return zap.NewAtomicLevelAt(parsed), nil
	}

	if env == EnvironmentDevelopment || env == EnvironmentLocal {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
}
