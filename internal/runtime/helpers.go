package runtime

import (
	"context"
	"fmt"
	"io"

	"github.com/medsim/diagnosis-gateway/internal/agent"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/knowledge"
	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
)

// newEmbedder builds the configured embedder. The returned closer is nil
// when the embedder holds no resources.
func newEmbedder(ctx context.Context, cfg config.KnowledgeConfig) (ports.Embedder, io.Closer, error) {
	switch cfg.Embedder {
	case "gemini":
		e, err := knowledge.NewGeminiEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, fmt.Errorf("create gemini embedder: %w", err)
		}
		return e, e, nil
	case "hash", "":
		return knowledge.NewHashEmbedder(0), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported embedder: %s", cfg.Embedder)
	}
}

func agentSettings(cfg *config.Config) agent.Settings {
	return agent.Settings{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		HistoryRuns: cfg.Agents.HistoryRuns,
		MemoryLimit: cfg.Agents.MemoryLimit,
		TopK:        cfg.Knowledge.TopK,
	}
}

func knowledgeConfig(cfg config.KnowledgeConfig) knowledge.Config {
	return knowledge.Config{
		Path:         cfg.Path,
		ChunkTokens:  cfg.ChunkTokens,
		ChunkOverlap: cfg.ChunkOverlap,
		TopK:         cfg.TopK,
	}
}
