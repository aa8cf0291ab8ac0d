// Package knowledge loads the PDF reference library the agents consult and
// answers similarity queries over it.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/tokens"
)

// Config controls loading and chunking.
type Config struct {
	Path         string
	ChunkTokens  int
	ChunkOverlap int
	TopK         int
}

// Base is a ports.KnowledgeBase over the PDFs in Config.Path.
type Base struct {
	cfg      Config
	embedder ports.Embedder
	counter  *tokens.Counter
	logger   *slog.Logger

	mu      sync.RWMutex
	index   *Index
	sources []string
	ready   atomic.Bool
}

var _ ports.KnowledgeBase = (*Base)(nil)

// New creates an unloaded base. Call Load before Search.
func New(cfg Config, embedder ports.Embedder, logger *slog.Logger) (*Base, error) {
	if cfg.ChunkTokens <= 0 {
		cfg.ChunkTokens = 512
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkTokens {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", cfg.ChunkOverlap, cfg.ChunkTokens)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter, err := tokens.NewCounter(tokens.DefaultEncoding)
	if err != nil {
		return nil, err
	}

	return &Base{
		cfg:      cfg,
		embedder: embedder,
		counter:  counter,
		logger:   logger,
		index:    &Index{},
	}, nil
}

// Load rebuilds the index from disk, replacing any previous contents. An
// empty or missing directory leaves a ready, empty base.
func (b *Base) Load(ctx context.Context) error {
	start := time.Now()

	pages, err := LoadDir(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("load knowledge base: %w", err)
	}

	var (
		docs    []domain.Document
		texts   []string
		sources []string
		seen    = make(map[string]bool)
	)
	for _, p := range pages {
		chunks, err := b.counter.Split(p.Text, b.cfg.ChunkTokens, b.cfg.ChunkOverlap)
		if err != nil {
			return fmt.Errorf("chunk %s page %d: %w", p.Source, p.Number, err)
		}
		for _, c := range chunks {
			docs = append(docs, domain.Document{Source: p.Source, Page: p.Number, Content: c})
			texts = append(texts, c)
		}
		if !seen[p.Source] {
			seen[p.Source] = true
			sources = append(sources, p.Source)
		}
	}

	index := &Index{}
	if len(texts) > 0 {
		vecs, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed knowledge base: %w", err)
		}
		if len(vecs) != len(docs) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(docs))
		}
		for i, doc := range docs {
			index.Add(doc, vecs[i])
		}
	} else {
		b.logger.Warn("knowledge base is empty", slog.String("path", b.cfg.Path))
	}

	b.mu.Lock()
	b.index = index
	b.sources = sources
	b.mu.Unlock()
	b.ready.Store(true)

	b.logger.Info("knowledge base loaded",
		slog.String("path", b.cfg.Path),
		slog.String("embedder", b.embedder.Name()),
		slog.Int("documents", len(sources)),
		slog.Int("chunks", index.Len()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Search embeds query and returns up to k chunks, best first. k <= 0 uses
// the configured top_k.
func (b *Base) Search(ctx context.Context, query string, k int) ([]domain.Document, error) {
	if !b.Ready() {
		return nil, fmt.Errorf("knowledge base not loaded")
	}
	if k <= 0 {
		k = b.cfg.TopK
	}

	b.mu.RLock()
	index := b.index
	b.mu.RUnlock()

	if index.Len() == 0 {
		return nil, nil
	}

	vecs, err := b.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(vecs))
	}
	return index.Search(vecs[0], k), nil
}

// Ready reports whether Load has completed.
func (b *Base) Ready() bool {
	return b.ready.Load()
}

// Sources lists the loaded PDF file names.
func (b *Base) Sources() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.sources...)
}
