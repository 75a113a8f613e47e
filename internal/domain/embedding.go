package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// VectorMatch is a single vector similarity hit, resolved back to the
// document it belongs to.
type VectorMatch struct {
	Ref        string // vectorRef naming the vector hash
	EntityType string
	EntityID   string
	Score      float64 // cosine similarity in [0,1]
}
