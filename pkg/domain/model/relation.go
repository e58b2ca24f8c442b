package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Relation is a typed directed edge between two memory nodes. A SUPERSEDES
// edge always points from the superseding node to the node it replaces.
type Relation struct {
	ID        types.RelationID
	Kind      types.RelationKind
	From      types.MemoryID
	To        types.MemoryID
	CreatedAt time.Time
}

// NewRelation creates a relation with a fresh ID and timestamp.
func NewRelation(kind types.RelationKind, from, to types.MemoryID) *Relation {
	return &Relation{
		ID:        types.NewRelationID(),
		Kind:      kind,
		From:      from,
		To:        to,
		CreatedAt: time.Now(),
	}
}

// Validate checks the relation shape.
func (r *Relation) Validate() error {
	if !r.Kind.IsValid() {
		return goerr.Wrap(ErrInvalidInput, "unknown relation kind", goerr.V("kind", r.Kind))
	}
	if r.From == "" || r.To == "" {
		return goerr.Wrap(ErrInvalidInput, "relation endpoints are required",
			goerr.V("from", r.From), goerr.V("to", r.To))
	}
	if r.From == r.To {
		return goerr.Wrap(ErrInvalidInput, "relation cannot be self-referential", goerr.V("node", r.From))
	}
	return nil
}

// Entity is a named concept extracted from node content, linked to the nodes
// it appears in. Entities are produced by the extraction provider; the core
// stores and surfaces them but never invents them.
type Entity struct {
	ID        types.EntityID
	Name      string
	MemoryIDs []types.MemoryID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntity creates an entity linked to the given nodes.
func NewEntity(name string, memoryIDs ...types.MemoryID) *Entity {
	now := time.Now()
	return &Entity{
		ID:        types.NewEntityID(),
		Name:      name,
		MemoryIDs: memoryIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Link adds a node reference if not already present and bumps UpdatedAt.
func (e *Entity) Link(id types.MemoryID) {
	for _, existing := range e.MemoryIDs {
		if existing == id {
			return
		}
	}
	e.MemoryIDs = append(e.MemoryIDs, id)
	e.UpdatedAt = time.Now()
}
