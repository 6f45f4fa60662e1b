// Package factory builds provider adapters from model templates. It lives
// outside package llm so adapters can depend on llm without a cycle.
package factory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/commandpost/overmind/internal/config"
	"github.com/commandpost/overmind/internal/llm"
	"github.com/commandpost/overmind/internal/llm/providers/gemini"
	"github.com/commandpost/overmind/internal/llm/providers/openaicompat"
)

// Build resolves one model template into a ready adapter. Unknown template
// types are rejected here, not at call time.
func Build(ctx context.Context, cfg config.ModelConfig) (llm.Adapter, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "openai", "openai-compat":
		return openaicompat.NewAdapter(openaicompat.Config{
			Provider:        "openai",
			APIKey:          cfg.ResolveAPIKey(),
			BaseURL:         cfg.BaseURL,
			Model:           cfg.Model,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			Timeout:         timeout,
			ExtraHeaders:    cfg.Headers,
		}), nil
	case "gemini":
		return gemini.NewAdapter(ctx, gemini.Config{
			APIKey:      cfg.ResolveAPIKey(),
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			Timeout:     timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported model type: %q", cfg.Type)
	}
}
