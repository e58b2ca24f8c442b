package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// SimilarityOptions narrows a nearest-neighbor query. A nil Statuses slice
// matches active nodes only.
type SimilarityOptions struct {
	ConceptType types.ConceptType
	Window      model.TimeWindow
	Statuses    []types.NodeStatus
}

// GraphRepository is the store adapter the engines depend on. Every call is
// individually atomic; Supersede is the only multi-write transaction the
// engines require.
type GraphRepository interface {
	// CreateNode persists a new node.
	CreateNode(ctx context.Context, node *model.MemoryNode) error

	// GetNode retrieves a node by ID.
	GetNode(ctx context.Context, id types.MemoryID) (*model.MemoryNode, error)

	// UpdateNode rewrites content, embedding, status and updated_at of an
	// existing node.
	UpdateNode(ctx context.Context, node *model.MemoryNode) error

	// SetStatus flips the status of a node and bumps updated_at.
	SetStatus(ctx context.Context, id types.MemoryID, status types.NodeStatus) error

	// DeleteNode removes a node together with its incident edges.
	DeleteNode(ctx context.Context, id types.MemoryID) error

	// ListByConceptType returns nodes of one concept type inside the window,
	// newest first, capped at limit.
	ListByConceptType(ctx context.Context, conceptType types.ConceptType, window model.TimeWindow, includeSuperseded bool, limit int) ([]*model.MemoryNode, error)

	// SimilarityQuery returns up to k nodes ranked by cosine similarity to
	// the embedding, filtered by the options.
	SimilarityQuery(ctx context.Context, embedding []float32, k int, opt SimilarityOptions) ([]*model.SimilarityMatch, error)

	// CreateEdge persists a relation.
	CreateEdge(ctx context.Context, rel *model.Relation) error

	// Neighbors returns every relation incident to any of the given nodes,
	// in either direction.
	Neighbors(ctx context.Context, ids []types.MemoryID) ([]*model.Relation, error)

	// PathQuery returns the relations reachable from seed within maxDepth
	// hops, following only the given kinds.
	PathQuery(ctx context.Context, kinds []types.RelationKind, seed types.MemoryID, maxDepth int) ([]*model.Relation, error)

	// Supersede atomically creates the new node, marks the old node
	// superseded, adds a SUPERSEDES edge new to old, and re-points the old
	// node's other edges at the new node. Either everything applies or
	// nothing does.
	Supersede(ctx context.Context, newNode *model.MemoryNode, oldID types.MemoryID) error
}

// EntityRepository persists extracted named entities and their node links.
type EntityRepository interface {
	// Upsert creates the entity or merges the node links into an existing
	// entity with the same name.
	Upsert(ctx context.Context, name string, memoryIDs ...types.MemoryID) (*model.Entity, error)

	// Get retrieves an entity by ID.
	Get(ctx context.Context, id types.EntityID) (*model.Entity, error)

	// ListByMemoryIDs returns entities linked to any of the given nodes.
	ListByMemoryIDs(ctx context.Context, ids []types.MemoryID) ([]*model.Entity, error)
}
