package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type graphRepository struct {
	mu    sync.RWMutex
	nodes map[types.MemoryID]*model.MemoryNode
	edges map[types.RelationID]*model.Relation
}

func newGraphRepository() *graphRepository {
	return &graphRepository{
		nodes: make(map[types.MemoryID]*model.MemoryNode),
		edges: make(map[types.RelationID]*model.Relation),
	}
}

func copyNode(n *model.MemoryNode) *model.MemoryNode {
	copied := &model.MemoryNode{
		ID:          n.ID,
		Content:     n.Content,
		ConceptType: n.ConceptType,
		Status:      n.Status,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
	if n.Embedding != nil {
		copied.Embedding = make([]float32, len(n.Embedding))
		copy(copied.Embedding, n.Embedding)
	}
	return copied
}

func copyRelation(r *model.Relation) *model.Relation {
	copied := *r
	return &copied
}

func (r *graphRepository) CreateNode(ctx context.Context, node *model.MemoryNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyNode(node)
	if stored.ID == "" {
		stored.ID = types.NewMemoryID()
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	stored.Status = stored.Status.Normalize()

	r.nodes[stored.ID] = stored
	node.ID = stored.ID
	return nil
}

func (r *graphRepository) GetNode(ctx context.Context, id types.MemoryID) (*model.MemoryNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, exists := r.nodes[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNodeNotFound, "node not found", goerr.V("id", id))
	}
	return copyNode(node), nil
}

func (r *graphRepository) UpdateNode(ctx context.Context, node *model.MemoryNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node.ID]; !exists {
		return goerr.Wrap(model.ErrNodeNotFound, "node not found", goerr.V("id", node.ID))
	}
	stored := copyNode(node)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	r.nodes[node.ID] = stored
	return nil
}

func (r *graphRepository) SetStatus(ctx context.Context, id types.MemoryID, status types.NodeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.nodes[id]
	if !exists {
		return goerr.Wrap(model.ErrNodeNotFound, "node not found", goerr.V("id", id))
	}
	node.Status = status
	node.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *graphRepository) DeleteNode(ctx context.Context, id types.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[id]; !exists {
		return goerr.Wrap(model.ErrNodeNotFound, "node not found", goerr.V("id", id))
	}
	delete(r.nodes, id)
	for edgeID, edge := range r.edges {
		if edge.From == id || edge.To == id {
			delete(r.edges, edgeID)
		}
	}
	return nil
}

func (r *graphRepository) ListByConceptType(ctx context.Context, conceptType types.ConceptType, window model.TimeWindow, includeSuperseded bool, limit int) ([]*model.MemoryNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.MemoryNode
	for _, node := range r.nodes {
		if node.ConceptType != conceptType {
			continue
		}
		if !includeSuperseded && node.Status == types.StatusSuperseded {
			continue
		}
		if !window.Contains(node) {
			continue
		}
		result = append(result, copyNode(node))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *graphRepository) SimilarityQuery(ctx context.Context, embedding []float32, k int, opt interfaces.SimilarityOptions) ([]*model.SimilarityMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := opt.Statuses
	if len(statuses) == 0 {
		statuses = []types.NodeStatus{types.StatusActive}
	}
	allowed := make(map[types.NodeStatus]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}

	var matches []*model.SimilarityMatch
	for _, node := range r.nodes {
		if !allowed[node.Status] {
			continue
		}
		if opt.ConceptType != "" && node.ConceptType != opt.ConceptType {
			continue
		}
		if !opt.Window.Contains(node) {
			continue
		}
		if len(node.Embedding) == 0 {
			continue
		}
		matches = append(matches, &model.SimilarityMatch{
			Node:       copyNode(node),
			Similarity: cosineSimilarity(embedding, node.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Node.UpdatedAt.After(matches[j].Node.UpdatedAt)
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (r *graphRepository) CreateEdge(ctx context.Context, rel *model.Relation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createEdgeLocked(rel)
}

func (r *graphRepository) createEdgeLocked(rel *model.Relation) error {
	if _, exists := r.nodes[rel.From]; !exists {
		return goerr.Wrap(model.ErrNodeNotFound, "edge source not found", goerr.V("from", rel.From))
	}
	if _, exists := r.nodes[rel.To]; !exists {
		return goerr.Wrap(model.ErrNodeNotFound, "edge target not found", goerr.V("to", rel.To))
	}

	stored := copyRelation(rel)
	if stored.ID == "" {
		stored.ID = types.NewRelationID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.edges[stored.ID] = stored
	rel.ID = stored.ID
	return nil
}

func (r *graphRepository) Neighbors(ctx context.Context, ids []types.MemoryID) ([]*model.Relation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[types.MemoryID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var result []*model.Relation
	for _, edge := range r.edges {
		if wanted[edge.From] || wanted[edge.To] {
			result = append(result, copyRelation(edge))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *graphRepository) PathQuery(ctx context.Context, kinds []types.RelationKind, seed types.MemoryID, maxDepth int) ([]*model.Relation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := make(map[types.RelationKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	visited := map[types.MemoryID]bool{seed: true}
	frontier := []types.MemoryID{seed}
	collected := make(map[types.RelationID]*model.Relation)

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []types.MemoryID
		for _, edge := range r.edges {
			if !allowed[edge.Kind] {
				continue
			}
			var reached types.MemoryID
			switch {
			case visitedContains(visited, edge.From) && !visitedContains(visited, edge.To):
				reached = edge.To
			case visitedContains(visited, edge.To) && !visitedContains(visited, edge.From):
				reached = edge.From
			case visitedContains(visited, edge.From) && visitedContains(visited, edge.To):
				collected[edge.ID] = copyRelation(edge)
				continue
			default:
				continue
			}
			if !frontierTouches(frontier, edge) {
				continue
			}
			collected[edge.ID] = copyRelation(edge)
			visited[reached] = true
			next = append(next, reached)
		}
		frontier = next
	}

	result := make([]*model.Relation, 0, len(collected))
	for _, edge := range collected {
		result = append(result, copyRelation(edge))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func visitedContains(visited map[types.MemoryID]bool, id types.MemoryID) bool {
	return visited[id]
}

func frontierTouches(frontier []types.MemoryID, edge *model.Relation) bool {
	for _, id := range frontier {
		if edge.From == id || edge.To == id {
			return true
		}
	}
	return false
}

func (r *graphRepository) Supersede(ctx context.Context, newNode *model.MemoryNode, oldID types.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.nodes[oldID]
	if !exists {
		return goerr.Wrap(model.ErrNodeNotFound, "supersede target not found", goerr.V("id", oldID))
	}

	stored := copyNode(newNode)
	if stored.ID == "" {
		stored.ID = types.NewMemoryID()
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	stored.Status = types.StatusActive
	r.nodes[stored.ID] = stored
	newNode.ID = stored.ID

	old.Status = types.StatusSuperseded
	old.UpdatedAt = now

	edge := model.NewRelation(types.RelationSupersedes, stored.ID, oldID)
	r.edges[edge.ID] = edge

	// Carry the old node's graph context forward so expansion from the new
	// node still reaches what the old one was connected to.
	for _, existing := range r.edges {
		if existing.Kind == types.RelationSupersedes {
			continue
		}
		from, to := existing.From, existing.To
		switch {
		case from == oldID && to != stored.ID:
			from = stored.ID
		case to == oldID && from != stored.ID:
			to = stored.ID
		default:
			continue
		}
		copied := model.NewRelation(existing.Kind, from, to)
		copied.CreatedAt = existing.CreatedAt
		r.edges[copied.ID] = copied
	}

	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
