package model

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// SimilarityMatch pairs a node with its cosine similarity to a query
// embedding, as returned by the store's nearest-neighbor query.
type SimilarityMatch struct {
	Node       *MemoryNode
	Similarity float64
}

// TimeWindow restricts queries to nodes created or updated after Since.
// A zero Since means unbounded.
type TimeWindow struct {
	Since time.Time
}

// Contains reports whether the node falls inside the window.
func (w TimeWindow) Contains(n *MemoryNode) bool {
	if w.Since.IsZero() {
		return true
	}
	return n.TouchedSince(w.Since)
}

// SearchHit is one ranked recall result. Seeds have hop distance 0; expanded
// nodes carry the distance of their shortest path from any seed.
type SearchHit struct {
	Node        *MemoryNode
	Score       float64
	HopDistance int
}

// ChainLink is one traversed causal edge with both endpoints resolved.
type ChainLink struct {
	Relation *Relation
	From     *MemoryNode
	To       *MemoryNode
}

// ReasoningChain is a derived causal path through the graph, ordered oldest
// cause to newest effect. Chains are recomputed per request, never stored.
type ReasoningChain struct {
	Links []ChainLink
	Score float64
}

// GraphView is the bounded neighborhood of one node: the nodes and relations
// reachable within the requested depth, plus the entities linked to them.
type GraphView struct {
	Center    types.MemoryID
	Nodes     []*MemoryNode
	Relations []*Relation
	Entities  []*Entity
}

// GraphStats summarizes the stored graph for the stats surface.
type GraphStats struct {
	NodesByStatus map[types.NodeStatus]int
	EdgesByKind   map[types.RelationKind]int
	EntityCount   int
}
