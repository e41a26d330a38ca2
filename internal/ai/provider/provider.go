// Package provider builds the configured ai.Generator.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/embernet/tapestry-sub001/internal/ai"
	"github.com/embernet/tapestry-sub001/internal/ai/gemini"
	"github.com/embernet/tapestry-sub001/internal/ai/openai"
	"github.com/embernet/tapestry-sub001/internal/config"
)

// New returns the provider named in cfg, wrapped in the circuit breaker when
// enabled and instrumented with logger and recorder.
func New(ctx context.Context, cfg config.AIConfig, logger *zap.Logger, recorder ai.Recorder) (ai.Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		gen ai.Generator
		err error
	)
	switch cfg.Provider {
	case "gemini", "":
		gen, err = gemini.New(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		gen, err = openai.New(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Breaker.Enabled {
		gen = ai.WithBreaker(gen, ai.BreakerSettings{
			Name:     cfg.Provider,
			Failures: cfg.Breaker.Failures,
			Timeout:  cfg.Breaker.Timeout,
			Logger:   logger,
		})
	}
	logger.Info("model provider ready", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
	return ai.Instrument(gen, logger.Named("ai"), recorder), nil
}
