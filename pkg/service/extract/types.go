package extract

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Service defines the interface for fact extraction from free text
type Service interface {
	// Extract analyzes text and returns discrete facts ready for storage,
	// each with its concept type, subject key, entity mentions, and embedding
	Extract(ctx context.Context, text string, hint types.ConceptType) ([]*Fact, error)

	// Embed generates an embedding vector for arbitrary text. Results are
	// cached so repeated queries do not re-bill the embedding model.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fact is one extracted, storage-ready statement.
type Fact struct {
	Content     string
	ConceptType types.ConceptType
	SubjectKey  string
	Entities    []string
	Embedding   []float32
}

// llmResponse is the structured output from the LLM
type llmResponse struct {
	Facts []extractedFact `json:"facts"`
}

// extractedFact is one fact as reported by the LLM
type extractedFact struct {
	Content     string   `json:"content"`
	ConceptType string   `json:"concept_type"`
	Subject     string   `json:"subject"`  // e.g. "preference:editor", empty when no stable subject exists
	Entities    []string `json:"entities"` // named entities mentioned in the fact
}
