// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// The filename is the key name and the trimmed contents are the value.
//
// Known keys: openai-api-key, gemini-api-key, ncbi-api-key, ncbi-email,
// semantic-scholar-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Key file names.
const (
	OpenAIAPIKey = "openai-api-key"
	GeminiAPIKey = "gemini-api-key"
	NCBIAPIKey   = "ncbi-api-key"
	NCBIEmail    = "ncbi-email"

	SemanticScholarAPIKey = "semantic-scholar-api-key"
)

// Set maps key names to values.
type Set map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty Set. Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	set := make(Set)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			set[name] = value
		}
	}
	return set, nil
}

// Apply fills credentials that cfg leaves empty. The generation key is
// chosen by cfg.Generation.Provider.
func (s Set) Apply(cfg *types.Config) {
	if cfg.Generation.APIKey == "" {
		switch cfg.Generation.Provider {
		case types.ProviderGemini:
			cfg.Generation.APIKey = s[GeminiAPIKey]
		default:
			cfg.Generation.APIKey = s[OpenAIAPIKey]
		}
	}
	if cfg.PubMed.APIKey == "" {
		cfg.PubMed.APIKey = s[NCBIAPIKey]
	}
	if cfg.PubMed.Email == "" {
		cfg.PubMed.Email = s[NCBIEmail]
	}
	if cfg.SemanticScholar.APIKey == "" {
		cfg.SemanticScholar.APIKey = s[SemanticScholarAPIKey]
	}
}
