// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// setDefaults registers every configuration key so that environment
// variables reach keys absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.user_agent", "evidence-engine/"+version)

	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.email", "")
	v.SetDefault("pubmed.tool", "evidence-engine")
	v.SetDefault("pubmed.api_key", "")

	v.SetDefault("evidence.max_results", 3)
	v.SetDefault("evidence.search_limit", 5)
	v.SetDefault("evidence.supplements", []string{})

	v.SetDefault("semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("semantic_scholar.api_key", "")
	v.SetDefault("europe_pmc.base_url", "https://www.ebi.ac.uk/europepmc/webservices/rest")

	v.SetDefault("conversation.capacity", 100)
	v.SetDefault("conversation.history_window", 5)

	v.SetDefault("respond.timeout", 60*time.Second)

	v.SetDefault("generation.provider", string(types.ProviderOpenAI))
	v.SetDefault("generation.model", "gpt-4-turbo-preview")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 1500)
	v.SetDefault("generation.timeout", 120*time.Second)

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.body_limit", "10M")
	v.SetDefault("server.rate_limit", 100)

	v.SetDefault("ledger.path", "data/ledger.db")
}

// loadConfig decodes v into a types.Config and validates it.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var c types.Config
	if err := v.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	switch c.Generation.Provider {
	case types.ProviderOpenAI, types.ProviderGemini:
	default:
		return types.Config{}, fmt.Errorf("generation.provider must be %q or %q, got %q",
			types.ProviderOpenAI, types.ProviderGemini, c.Generation.Provider)
	}
	if c.Conversation.Capacity <= 0 {
		return types.Config{}, fmt.Errorf("conversation.capacity must be positive, got %d", c.Conversation.Capacity)
	}
	if err := validateSupplements(c.Evidence.Supplements); err != nil {
		return types.Config{}, err
	}
	if c.Server.RateLimit < 0 {
		return types.Config{}, fmt.Errorf("server.rate_limit must not be negative, got %d", c.Server.RateLimit)
	}
	return c, nil
}

// validateSupplements rejects index names newAssembler cannot build.
func validateSupplements(names []string) error {
	for _, name := range names {
		switch name {
		case types.OriginSemanticScholar, types.OriginEuropePMC:
		default:
			return fmt.Errorf("evidence.supplements: unknown index %q (want %q or %q)",
				name, types.OriginSemanticScholar, types.OriginEuropePMC)
		}
	}
	return nil
}

// applyEnvFallbacks reads the provider's conventional key variable when no
// key is configured.
func applyEnvFallbacks(c *types.Config, getenv func(string) string) {
	if c.Generation.APIKey != "" {
		return
	}
	switch c.Generation.Provider {
	case types.ProviderGemini:
		c.Generation.APIKey = getenv("GEMINI_API_KEY")
	default:
		c.Generation.APIKey = getenv("OPENAI_API_KEY")
	}
}
