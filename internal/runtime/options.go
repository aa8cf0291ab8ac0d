package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
	"github.com/medsim/diagnosis-gateway/internal/storage"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfig sets the configuration. It is required.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfigFile loads and validates the configuration at path.
func WithConfigFile(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithStorage uses an already opened backend instead of opening one from
// configuration. The caller keeps ownership and closes it.
func WithStorage(backend *storage.Backend) Option {
	return func(g *Gateway) error {
		g.storage = backend
		return nil
	}
}

// WithMemoryStore overrides the agent memory store of the storage backend.
func WithMemoryStore(store ports.MemoryStore) Option {
	return func(g *Gateway) error {
		g.memories = store
		return nil
	}
}

// WithCompleter sets the language model client used by both agents,
// bypassing the provider factory.
func WithCompleter(c ports.Completer) Option {
	return func(g *Gateway) error {
		g.completer = c
		return nil
	}
}

// WithEmbedder sets the knowledge base embedder.
func WithEmbedder(e ports.Embedder) Option {
	return func(g *Gateway) error {
		g.embedder = e
		return nil
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(g *Gateway) error {
		g.metrics = h
		return nil
	}
}
