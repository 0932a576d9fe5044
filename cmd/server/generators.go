package main

import (
	"context"
	"log/slog"

	"github.com/ashureev/decoy/internal/agent"
	"github.com/ashureev/decoy/internal/config"
)

// providerSet holds the reply providers built from configuration.
type providerSet struct {
	generators []agent.Generator
	// closers release connections on shutdown.
	closers []func()
	// checks are reported by /health, keyed by provider name.
	checks map[string]func(context.Context) error
}

// buildGenerators returns the configured providers in GENERATOR_ORDER.
// Providers without credentials are skipped. The static provider is always
// last in the cascade, so listing it is a no-op.
func buildGenerators(cfg config.GeneratorConfig, logger *slog.Logger) providerSet {
	if logger == nil {
		logger = slog.Default()
	}
	set := providerSet{checks: make(map[string]func(context.Context) error)}
	for _, name := range cfg.Order {
		var (
			g   agent.Generator
			err error
		)
		switch name {
		case agent.GroqName:
			g, err = agent.NewOpenAIGeneratorFromAPIKey(agent.GroqName, cfg.GroqAPIKey, agent.GroqBaseURL, cfg.GroqModel)
		case agent.OpenAIName:
			g, err = agent.NewOpenAIGeneratorFromAPIKey(agent.OpenAIName, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		case agent.AnthropicName:
			g, err = agent.NewAnthropicGeneratorFromAPIKey(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		case agent.GrpcName:
			if cfg.PersonaAddr == "" {
				logger.Info("Persona service address not set, skipping provider", "provider", name)
				continue
			}
			logger.Info("Attempting to connect to persona service via gRPC", "address", cfg.PersonaAddr)
			var gg *agent.GrpcGenerator
			gg, err = agent.NewGrpcGenerator(agent.DefaultGrpcConfig(cfg.PersonaAddr), logger)
			if err == nil {
				set.closers = append(set.closers, gg.Close)
				set.checks[agent.GrpcName] = gg.Health
				g = gg
			}
		case agent.StaticName:
			continue
		default:
			logger.Warn("Unknown reply provider, skipping", "provider", name)
			continue
		}
		if err != nil {
			logger.Info("Reply provider disabled", "provider", name, "error", err)
			continue
		}
		set.generators = append(set.generators, g)
	}
	return set
}
