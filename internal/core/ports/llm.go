package ports

import (
	"context"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

// Completer sends one chat completion to a language model provider.
type Completer interface {
	Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
}

// Embedder turns text into vectors for retrieval.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// KnowledgeBase answers retrieval queries over the loaded documents.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, k int) ([]domain.Document, error)
	Ready() bool
}
