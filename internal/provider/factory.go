// Package provider builds the language model completers behind the agents.
//
// # Adding a New Provider
//
// Implement ports.Completer in a subpackage and expose a
// RegisterProviderFactory function that calls registry.RegisterFactory.
// Wire it from RegisterBuiltins so there are no init() side effects.
package provider

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
	"github.com/medsim/diagnosis-gateway/internal/provider/anthropic"
	"github.com/medsim/diagnosis-gateway/internal/provider/openai"
	"github.com/medsim/diagnosis-gateway/internal/provider/registry"
)

// RegisterBuiltins registers the groq, openai and anthropic factories.
// Safe to call more than once.
func RegisterBuiltins() {
	openai.RegisterProviderFactory()
	anthropic.RegisterProviderFactory()
}

// Option configures New.
type Option func(*options)

type options struct {
	httpClient *http.Client
	retry      config.RetryConfig
	timeout    time.Duration
	logger     *slog.Logger
}

// WithHTTPClient sets the HTTP client handed to the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithRetryPolicy wraps the completer in a RetryDecorator.
func WithRetryPolicy(cfg config.RetryConfig, timeout time.Duration) Option {
	return func(o *options) {
		o.retry = cfg
		o.timeout = timeout
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates the completer selected by cfg.Provider.
func New(cfg config.LLMConfig, opts ...Option) (ports.Completer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	RegisterBuiltins()
	c, err := registry.CreateFromFactory(cfg, o.httpClient)
	if err != nil {
		return nil, err
	}
	return WithRetry(c, o.retry, o.timeout, o.logger), nil
}
