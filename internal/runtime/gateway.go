// Package runtime provides the core Gateway struct and lifecycle management
// for the diagnosis gateway.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/medsim/diagnosis-gateway/internal/agent"
	"github.com/medsim/diagnosis-gateway/internal/auth"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/diagnosis"
	"github.com/medsim/diagnosis-gateway/internal/frontdoor"
	"github.com/medsim/diagnosis-gateway/internal/knowledge"
	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
	"github.com/medsim/diagnosis-gateway/internal/provider"
	"github.com/medsim/diagnosis-gateway/internal/scheduler"
	"github.com/medsim/diagnosis-gateway/internal/server"
	"github.com/medsim/diagnosis-gateway/internal/storage"
)

// Gateway is the main entry point for running the diagnosis gateway.
// It owns storage, the knowledge base, both agents, the memory cleanup job
// and the HTTP server. Gateway can be embedded in larger applications or
// run standalone.
type Gateway struct {
	// Dependencies (injected via options)
	cfg       *config.Config
	logger    *slog.Logger
	storage   *storage.Backend
	memories  ports.MemoryStore
	completer ports.Completer
	embedder  ports.Embedder
	metrics   http.Handler

	// Internal state
	ownsStorage bool
	closers     []io.Closer
	agents      *agent.Registry
	knowledge   *knowledge.Base
	pipeline    *diagnosis.Pipeline
	cleanup     *scheduler.MemoryCleanup
	server      *server.Server
	errs        chan error

	mu      sync.Mutex
	started bool
}

// New creates a new Gateway with the given options. WithConfig (or
// WithConfigFile) is required.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
		agents: agent.NewRegistry(),
		errs:   make(chan error, 1),
	}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithConfigFile)")
	}
	return gw, nil
}

// Start opens storage, loads the knowledge base, binds both agents, starts
// the memory cleanup job and begins serving HTTP in the background. Serve
// errors are reported on Errors.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return fmt.Errorf("gateway already started")
	}

	if err := g.start(ctx); err != nil {
		g.stopCleanup(ctx)
		_ = g.release()
		return err
	}
	g.started = true

	go func() {
		if err := g.server.Start(); err != nil {
			g.logger.Error("server error", slog.String("error", err.Error()))
			g.errs <- err
		}
	}()

	g.logger.Info("gateway started",
		slog.Int("port", g.cfg.Server.Port),
		slog.Int("knowledge_sources", len(g.knowledge.Sources())),
		slog.Time("next_memory_cleanup", g.cleanup.Next()))
	return nil
}

func (g *Gateway) start(ctx context.Context) error {
	if err := g.initStorage(ctx); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := g.initKnowledge(ctx); err != nil {
		return fmt.Errorf("init knowledge base: %w", err)
	}
	if err := g.initAgents(); err != nil {
		return fmt.Errorf("init agents: %w", err)
	}

	g.pipeline = diagnosis.New(g.agents, diagnosis.WithLogger(g.logger))

	g.cleanup = scheduler.NewMemoryCleanup(g.storage.Memories, g.cfg.Memory.CleanupInterval, g.logger)
	if err := g.cleanup.Start(); err != nil {
		return fmt.Errorf("start memory cleanup: %w", err)
	}

	if err := g.initServer(); err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	return nil
}

// initStorage opens the configured backend unless one was injected.
func (g *Gateway) initStorage(ctx context.Context) error {
	if g.storage == nil {
		backend, err := storage.Open(ctx, g.cfg.Storage, g.cfg.Memory, g.logger)
		if err != nil {
			return err
		}
		g.storage = backend
		g.ownsStorage = true
	}
	if g.memories != nil {
		g.storage.Memories = g.memories
	}
	return nil
}

// initKnowledge loads the PDF library. Agents are built only after this
// succeeds.
func (g *Gateway) initKnowledge(ctx context.Context) error {
	if g.embedder == nil {
		e, closer, err := newEmbedder(ctx, g.cfg.Knowledge)
		if err != nil {
			return err
		}
		g.embedder = e
		if closer != nil {
			g.closers = append(g.closers, closer)
		}
	}

	kb, err := knowledge.New(knowledgeConfig(g.cfg.Knowledge), g.embedder, g.logger)
	if err != nil {
		return err
	}
	if err := kb.Load(ctx); err != nil {
		return err
	}
	g.knowledge = kb
	return nil
}

// initAgents builds and binds every agent definition. Any failure aborts
// startup.
func (g *Gateway) initAgents() error {
	if g.completer == nil {
		c, err := provider.New(g.cfg.LLM,
			provider.WithRetryPolicy(g.cfg.Agents.Retry, g.cfg.Agents.Timeout),
			provider.WithLogger(g.logger))
		if err != nil {
			return fmt.Errorf("create completer: %w", err)
		}
		g.completer = c
	}

	deps := agent.Deps{
		Completer: g.completer,
		Sessions:  g.storage.Sessions,
		Memories:  g.storage.Memories,
		Knowledge: g.knowledge,
		Logger:    g.logger,
	}
	settings := agentSettings(g.cfg)

	for _, def := range agent.Definitions() {
		a, err := agent.New(def, settings, deps)
		if err != nil {
			return err
		}
		instrumented, err := agent.NewInstrumented(def.Kind, a)
		if err != nil {
			return fmt.Errorf("instrument %s: %w", def.Kind, err)
		}
		g.agents.Bind(def.Kind, instrumented)
		g.logger.Info("agent ready",
			slog.String("agent", string(def.Kind)),
			slog.String("model", settings.Model))
	}
	return nil
}

// initServer creates the HTTP server and mounts every registered frontdoor.
func (g *Gateway) initServer() error {
	users, err := auth.NewService(g.storage.Users, g.cfg.Auth.SecretKey, g.cfg.Auth.Algorithm,
		auth.WithTokenTTL(g.cfg.Auth.TokenTTL))
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}

	srv := server.New(g.cfg.Server.Port, g.logger)

	n, err := frontdoor.Mount(srv.Router, frontdoor.HandlerConfig{
		Pipeline: g.pipeline,
		Agents:   g.agents,
		Users:    users,
		Verifier: users,
		Logger:   g.logger,
	}, g.cfg.Server.RequestTimeout)
	if err != nil {
		return fmt.Errorf("mount frontdoors: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no frontdoors registered (call registration.RegisterBuiltins)")
	}

	if g.metrics != nil {
		srv.Router.Method(http.MethodGet, "/metrics", g.metrics)
	}

	g.logger.Info("frontdoor handlers registered",
		slog.Int("count", n),
		slog.Any("frontdoors", frontdoor.ListFrontdoorTypes()))

	g.server = srv
	return nil
}

// Handler returns the mounted router, or nil before Start.
func (g *Gateway) Handler() http.Handler {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.server == nil {
		return nil
	}
	return g.server.Router
}

// Agents reports the agent bindings.
func (g *Gateway) Agents() ports.AgentResolver {
	return g.agents
}

// Errors delivers a serve failure after Start.
func (g *Gateway) Errors() <-chan error {
	return g.errs
}

// Shutdown stops the HTTP server, then the cleanup job, then storage.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started {
		return nil
	}
	g.started = false

	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.server.Shutdown(ctx); err != nil {
		g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	g.stopCleanup(ctx)
	if err := g.release(); err != nil {
		errs = append(errs, err)
	}

	g.logger.Info("gateway shutdown complete")
	return errors.Join(errs...)
}

// stopCleanup waits for a running cleanup job. Its errors are logged only.
func (g *Gateway) stopCleanup(ctx context.Context) {
	if g.cleanup == nil {
		return
	}
	if err := g.cleanup.Stop(ctx); err != nil {
		g.logger.Error("failed to stop memory cleanup", slog.String("error", err.Error()))
	}
}

// release closes owned storage and embedder resources.
func (g *Gateway) release() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	g.closers = nil

	if g.ownsStorage && g.storage != nil {
		if err := g.storage.Close(); err != nil {
			g.logger.Error("failed to close storage", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		g.storage = nil
		g.ownsStorage = false
	}
	return errors.Join(errs...)
}
