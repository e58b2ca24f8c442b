package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// EmbeddingDimension is the dimension of the embedding vector.
// Gemini text-embedding-004 uses 768 dimensions.
const EmbeddingDimension = 768

// IncompleteMarker tags content auto-saved from a timed-out think session.
const IncompleteMarker = "[INCOMPLETE]"

// MemoryNode represents a persisted atomic fact, preference, goal or similar
// unit of agent memory. Nodes carry an embedding for similarity search and a
// status driven by the consolidation engine.
type MemoryNode struct {
	ID          types.MemoryID
	Content     string
	Embedding   []float32
	ConceptType types.ConceptType
	Status      types.NodeStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewMemoryNode creates an active node with a fresh ID and timestamps.
func NewMemoryNode(content string, embedding []float32, conceptType types.ConceptType) *MemoryNode {
	now := time.Now()
	return &MemoryNode{
		ID:          types.NewMemoryID(),
		Content:     content,
		Embedding:   embedding,
		ConceptType: conceptType,
		Status:      types.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks structural shape before the node reaches the store.
func (n *MemoryNode) Validate() error {
	if strings.TrimSpace(n.Content) == "" {
		return goerr.Wrap(ErrInvalidInput, "node content is empty", goerr.V("id", n.ID))
	}
	if !n.ConceptType.IsValid() {
		return goerr.Wrap(ErrInvalidInput, "unknown concept type",
			goerr.V("id", n.ID), goerr.V("concept_type", n.ConceptType))
	}
	if len(n.Embedding) != EmbeddingDimension {
		return goerr.Wrap(ErrInvalidInput, "embedding dimension mismatch",
			goerr.V("id", n.ID), goerr.V("got", len(n.Embedding)), goerr.V("want", EmbeddingDimension))
	}
	if !n.Status.Normalize().IsValid() {
		return goerr.Wrap(ErrInvalidInput, "unknown node status",
			goerr.V("id", n.ID), goerr.V("status", n.Status))
	}
	return nil
}

// HasIncompleteMarker reports whether the content still carries the timeout
// auto-save tag.
func (n *MemoryNode) HasIncompleteMarker() bool {
	return strings.Contains(n.Content, IncompleteMarker)
}

// TouchedSince reports whether the node was created or updated after t.
// Used for recency window checks where either timestamp qualifies.
func (n *MemoryNode) TouchedSince(t time.Time) bool {
	return n.CreatedAt.After(t) || n.UpdatedAt.After(t)
}
