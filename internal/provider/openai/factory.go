package openai

import (
	"fmt"
	"net/http"

	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
	"github.com/medsim/diagnosis-gateway/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "openai"

// ProviderTypeGroq is Groq's OpenAI-compatible endpoint.
const ProviderTypeGroq = "groq"

// GroqBaseURL is used for the groq provider when no base_url is configured.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// RegisterProviderFactory registers the openai and groq factories.
func RegisterProviderFactory() {
	for _, f := range []registry.ProviderFactory{
		{
			Type:           ProviderType,
			Description:    "OpenAI Chat Completions API",
			Create:         CreateFromConfig,
			ValidateConfig: ValidateConfig,
		},
		{
			Type:           ProviderTypeGroq,
			Description:    "Groq OpenAI-compatible API",
			Create:         CreateFromConfig,
			ValidateConfig: ValidateConfig,
		},
	} {
		if !registry.IsRegistered(f.Type) {
			registry.RegisterFactory(f)
		}
	}
}

// CreateFromConfig creates a new provider from configuration.
func CreateFromConfig(cfg config.LLMConfig, httpClient *http.Client) (ports.Completer, error) {
	opts := []ProviderOption{WithName(cfg.Provider)}

	baseURL := cfg.BaseURL
	if baseURL == "" && cfg.Provider == ProviderTypeGroq {
		baseURL = GroqBaseURL
	}
	if baseURL != "" {
		opts = append(opts, WithBaseURL(baseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if httpClient != nil {
		opts = append(opts, WithHTTPClient(httpClient))
	}
	return New(cfg.APIKey, opts...), nil
}

// ValidateConfig validates the provider configuration.
func ValidateConfig(cfg config.LLMConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("api_key is required for %s", cfg.Provider)
	}
	return nil
}
