package types

import "time"

// HTTPConfig holds shared HTTP settings used by every component that makes
// network requests.
type HTTPConfig struct {
	// Timeout bounds each outbound request (default 15s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// PubMedConfig holds settings for the NCBI E-utilities client.
type PubMedConfig struct {
	// BaseURL is the E-utilities root (default https://eutils.ncbi.nlm.nih.gov/entrez/eutils).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Email and Tool identify the caller to NCBI.
	Email string `json:"email" yaml:"email" mapstructure:"email"`
	Tool  string `json:"tool" yaml:"tool" mapstructure:"tool"`

	// APIKey raises the NCBI rate limit from 3 to 10 requests per second.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// EvidenceConfig holds limits for the evidence assembler.
type EvidenceConfig struct {
	// MaxResults is the number of documents retrieved for a chat turn (default 3).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// SearchLimit is the default result count for raw searches (default 5).
	SearchLimit int `json:"search_limit" yaml:"search_limit" mapstructure:"search_limit"`

	// Supplements lists additional indexes queried alongside PubMed:
	// semantic_scholar, europe_pmc. Empty means PubMed only.
	Supplements []string `json:"supplements,omitempty" yaml:"supplements,omitempty" mapstructure:"supplements"`
}

// SemanticScholarConfig holds settings for the Semantic Scholar Graph API.
type SemanticScholarConfig struct {
	// BaseURL is the Graph API root (default https://api.semanticscholar.org/graph/v1).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is sent as x-api-key when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// EuropePMCConfig holds settings for the Europe PMC REST API.
type EuropePMCConfig struct {
	// BaseURL is the REST root (default https://www.ebi.ac.uk/europepmc/webservices/rest).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
}

// ConversationConfig holds settings for the in-process conversation store.
type ConversationConfig struct {
	// Capacity is the number of distinct conversations kept before the
	// oldest-inserted one is evicted (default 100).
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`

	// HistoryWindow is the number of most recent turns fed into a prompt (default 5).
	HistoryWindow int `json:"history_window" yaml:"history_window" mapstructure:"history_window"`
}

// Provider selects the generative backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// GenerationConfig holds shared settings for calls to a generative model.
type GenerationConfig struct {
	// Provider selects the backend: openai or gemini.
	Provider Provider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "gpt-4-turbo-preview").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint root (OpenAI-compatible gateways).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Temperature is the sampling temperature for chat answers (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens caps the completion length for chat answers (default 1500).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds one backend call (default 120s). Zero leaves the call
	// bounded only by the caller's context.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// RespondConfig holds settings for the response orchestrator.
type RespondConfig struct {
	// Timeout bounds one Respond call end to end (default 60s). Negative disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (default ":5000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// BodyLimit caps request bodies, echo syntax (default "10M").
	BodyLimit string `json:"body_limit" yaml:"body_limit" mapstructure:"body_limit"`

	// RateLimit is the number of /api requests allowed per client per
	// minute (default 100). Zero disables limiting.
	RateLimit int `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LedgerConfig holds settings for the exchange ledger.
type LedgerConfig struct {
	// Path is the SQLite database file. Empty disables the ledger.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config groups all component configurations.
type Config struct {
	HTTP            HTTPConfig            `json:"http" yaml:"http" mapstructure:"http"`
	PubMed          PubMedConfig          `json:"pubmed" yaml:"pubmed" mapstructure:"pubmed"`
	SemanticScholar SemanticScholarConfig `json:"semantic_scholar" yaml:"semantic_scholar" mapstructure:"semantic_scholar"`
	EuropePMC       EuropePMCConfig       `json:"europe_pmc" yaml:"europe_pmc" mapstructure:"europe_pmc"`
	Evidence        EvidenceConfig        `json:"evidence" yaml:"evidence" mapstructure:"evidence"`
	Conversation    ConversationConfig    `json:"conversation" yaml:"conversation" mapstructure:"conversation"`
	Generation      GenerationConfig      `json:"generation" yaml:"generation" mapstructure:"generation"`
	Respond         RespondConfig         `json:"respond" yaml:"respond" mapstructure:"respond"`
	Server          ServerConfig          `json:"server" yaml:"server" mapstructure:"server"`
	Ledger          LedgerConfig          `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
}
