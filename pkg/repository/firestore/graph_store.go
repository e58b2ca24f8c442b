package firestore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
)

// nodeDoc is the Firestore document representation of model.MemoryNode.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type nodeDoc struct {
	ID          string             `firestore:"id"`
	Content     string             `firestore:"content"`
	Embedding   firestore.Vector32 `firestore:"embedding,omitempty"`
	ConceptType string             `firestore:"concept_type"`
	Status      string             `firestore:"status"`
	CreatedAt   time.Time          `firestore:"created_at"`
	UpdatedAt   time.Time          `firestore:"updated_at"`
}

func toNodeDoc(n *model.MemoryNode) *nodeDoc {
	doc := &nodeDoc{
		ID:          string(n.ID),
		Content:     n.Content,
		ConceptType: string(n.ConceptType),
		Status:      string(n.Status),
		CreatedAt:   n.CreatedAt.UTC(),
		UpdatedAt:   n.UpdatedAt.UTC(),
	}
	if len(n.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(n.Embedding)
	}
	return doc
}

func fromNodeDoc(d *nodeDoc) *model.MemoryNode {
	n := &model.MemoryNode{
		ID:          types.MemoryID(d.ID),
		Content:     d.Content,
		ConceptType: types.ConceptType(d.ConceptType),
		Status:      types.NodeStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		n.Embedding = []float32(d.Embedding)
	}
	return n
}

// edgeDoc is the Firestore document representation of model.Relation.
type edgeDoc struct {
	ID        string    `firestore:"id"`
	Kind      string    `firestore:"kind"`
	From      string    `firestore:"from"`
	To        string    `firestore:"to"`
	CreatedAt time.Time `firestore:"created_at"`
}

func toEdgeDoc(r *model.Relation) *edgeDoc {
	return &edgeDoc{
		ID:        string(r.ID),
		Kind:      string(r.Kind),
		From:      string(r.From),
		To:        string(r.To),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func fromEdgeDoc(d *edgeDoc) *model.Relation {
	return &model.Relation{
		ID:        types.RelationID(d.ID),
		Kind:      types.RelationKind(d.Kind),
		From:      types.MemoryID(d.From),
		To:        types.MemoryID(d.To),
		CreatedAt: d.CreatedAt,
	}
}

type graphRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newGraphRepository(client *firestore.Client) *graphRepository {
	return &graphRepository{client: client}
}

func (r *graphRepository) nodes() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "memory_nodes")
}

func (r *graphRepository) edges() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "memory_edges")
}

func (r *graphRepository) CreateNode(ctx context.Context, node *model.MemoryNode) error {
	if node.ID == "" {
		node.ID = types.NewMemoryID()
	}
	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = node.CreatedAt
	}
	node.Status = node.Status.Normalize()

	if _, err := r.nodes().Doc(string(node.ID)).Set(ctx, toNodeDoc(node)); err != nil {
		return mapError(err, "failed to create node", goerr.V("id", node.ID))
	}
	return nil
}

func (r *graphRepository) GetNode(ctx context.Context, id types.MemoryID) (*model.MemoryNode, error) {
	doc, err := r.nodes().Doc(string(id)).Get(ctx)
	if err != nil {
		return nil, mapError(err, "failed to get node", goerr.V("id", id))
	}

	var d nodeDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal node", goerr.V("id", id))
	}
	return fromNodeDoc(&d), nil
}

func (r *graphRepository) UpdateNode(ctx context.Context, node *model.MemoryNode) error {
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = time.Now().UTC()
	}

	updates := []firestore.Update{
		{Path: "content", Value: node.Content},
		{Path: "concept_type", Value: string(node.ConceptType)},
		{Path: "status", Value: string(node.Status)},
		{Path: "updated_at", Value: node.UpdatedAt.UTC()},
	}
	if len(node.Embedding) > 0 {
		updates = append(updates, firestore.Update{Path: "embedding", Value: firestore.Vector32(node.Embedding)})
	}

	if _, err := r.nodes().Doc(string(node.ID)).Update(ctx, updates); err != nil {
		return mapError(err, "failed to update node", goerr.V("id", node.ID))
	}
	return nil
}

func (r *graphRepository) SetStatus(ctx context.Context, id types.MemoryID, status types.NodeStatus) error {
	updates := []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updated_at", Value: time.Now().UTC()},
	}
	if _, err := r.nodes().Doc(string(id)).Update(ctx, updates); err != nil {
		return mapError(err, "failed to set node status", goerr.V("id", id), goerr.V("status", status))
	}
	return nil
}

func (r *graphRepository) DeleteNode(ctx context.Context, id types.MemoryID) error {
	nodeRef := r.nodes().Doc(string(id))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(nodeRef); err != nil {
			return err
		}

		// All reads must happen before any write in a transaction.
		var edgeRefs []*firestore.DocumentRef
		for _, field := range []string{"from", "to"} {
			iter := tx.Documents(r.edges().Where(field, "==", string(id)))
			for {
				doc, err := iter.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					return err
				}
				edgeRefs = append(edgeRefs, doc.Ref)
			}
		}

		if err := tx.Delete(nodeRef); err != nil {
			return err
		}
		for _, ref := range edgeRefs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mapError(err, "failed to delete node", goerr.V("id", id))
	}
	return nil
}

func (r *graphRepository) ListByConceptType(ctx context.Context, conceptType types.ConceptType, window model.TimeWindow, includeSuperseded bool, limit int) ([]*model.MemoryNode, error) {
	q := r.nodes().
		Where("concept_type", "==", string(conceptType)).
		OrderBy("updated_at", firestore.Desc)
	if !window.Since.IsZero() {
		q = q.Where("updated_at", ">=", window.Since.UTC())
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var result []*model.MemoryNode
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err, "failed to iterate nodes", goerr.V("concept_type", conceptType))
		}

		var d nodeDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal node")
		}
		node := fromNodeDoc(&d)

		if !includeSuperseded && node.Status == types.StatusSuperseded {
			continue
		}
		// The range filter above only sees updated_at; the window also
		// admits nodes by created_at, which it covers transitively since
		// updated_at never precedes created_at.
		if !window.Contains(node) {
			continue
		}

		result = append(result, node)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *graphRepository) SimilarityQuery(ctx context.Context, embedding []float32, k int, opt interfaces.SimilarityOptions) ([]*model.SimilarityMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	statuses := opt.Statuses
	if len(statuses) == 0 {
		statuses = []types.NodeStatus{types.StatusActive}
	}
	allowed := make(map[types.NodeStatus]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}

	// FindNearest cannot combine with filters without a composite vector
	// index, so over-fetch and narrow client side.
	candidates := k * 4
	if candidates < 32 {
		candidates = 32
	}

	vq := r.nodes().FindNearest("embedding", firestore.Vector32(embedding), candidates, firestore.DistanceMeasureCosine, nil)
	iter := vq.Documents(ctx)
	defer iter.Stop()

	var matches []*model.SimilarityMatch
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err, "failed to iterate vector search results")
		}

		var d nodeDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal node from vector search")
		}
		node := fromNodeDoc(&d)

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
			Node:       node,
			Similarity: cosineSimilarity(embedding, node.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Node.UpdatedAt.After(matches[j].Node.UpdatedAt)
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (r *graphRepository) CreateEdge(ctx context.Context, rel *model.Relation) error {
	if rel.ID == "" {
		rel.ID = types.NewRelationID()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	if _, err := r.edges().Doc(string(rel.ID)).Set(ctx, toEdgeDoc(rel)); err != nil {
		return mapError(err, "failed to create edge", goerr.V("id", rel.ID))
	}
	return nil
}

func (r *graphRepository) Neighbors(ctx context.Context, ids []types.MemoryID) ([]*model.Relation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = string(id)
	}

	var mu sync.Mutex
	collected := make(map[types.RelationID]*model.Relation)

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < len(idStrs); i += queryChunkSize {
		end := i + queryChunkSize
		if end > len(idStrs) {
			end = len(idStrs)
		}
		batch := idStrs[i:end]

		for _, field := range []string{"from", "to"} {
			query := r.edges().Where(field, "in", batch)
			eg.Go(func() error {
				iter := query.Documents(ctx)
				defer iter.Stop()
				for {
					doc, err := iter.Next()
					if err == iterator.Done {
						return nil
					}
					if err != nil {
						return mapError(err, "failed to iterate edges")
					}

					var d edgeDoc
					if err := doc.DataTo(&d); err != nil {
						return goerr.Wrap(err, "failed to unmarshal edge")
					}
					edge := fromEdgeDoc(&d)

					mu.Lock()
					collected[edge.ID] = edge
					mu.Unlock()
				}
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := make([]*model.Relation, 0, len(collected))
	for _, edge := range collected {
		result = append(result, edge)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *graphRepository) PathQuery(ctx context.Context, kinds []types.RelationKind, seed types.MemoryID, maxDepth int) ([]*model.Relation, error) {
	allowed := make(map[types.RelationKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	visited := map[types.MemoryID]bool{seed: true}
	frontier := []types.MemoryID{seed}
	collected := make(map[types.RelationID]*model.Relation)

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		incident, err := r.Neighbors(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []types.MemoryID
		for _, edge := range incident {
			if !allowed[edge.Kind] {
				continue
			}
			collected[edge.ID] = edge

			for _, reached := range []types.MemoryID{edge.From, edge.To} {
				if !visited[reached] {
					visited[reached] = true
					next = append(next, reached)
				}
			}
		}
		frontier = next
	}

	result := make([]*model.Relation, 0, len(collected))
	for _, edge := range collected {
		result = append(result, edge)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *graphRepository) Supersede(ctx context.Context, newNode *model.MemoryNode, oldID types.MemoryID) error {
	if newNode.ID == "" {
		newNode.ID = types.NewMemoryID()
	}
	now := time.Now().UTC()
	if newNode.CreatedAt.IsZero() {
		newNode.CreatedAt = now
	}
	if newNode.UpdatedAt.IsZero() {
		newNode.UpdatedAt = newNode.CreatedAt
	}
	newNode.Status = types.StatusActive

	oldRef := r.nodes().Doc(string(oldID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(oldRef); err != nil {
			return err
		}

		// Read the old node's edges before any write; they are re-pointed
		// at the new node so graph expansion carries forward.
		var incident []*edgeDoc
		for _, field := range []string{"from", "to"} {
			iter := tx.Documents(r.edges().Where(field, "==", string(oldID)))
			for {
				doc, err := iter.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					return err
				}
				var d edgeDoc
				if err := doc.DataTo(&d); err != nil {
					return goerr.Wrap(err, "failed to unmarshal edge")
				}
				incident = append(incident, &d)
			}
		}

		if err := tx.Set(r.nodes().Doc(string(newNode.ID)), toNodeDoc(newNode)); err != nil {
			return err
		}

		if err := tx.Update(oldRef, []firestore.Update{
			{Path: "status", Value: string(types.StatusSuperseded)},
			{Path: "updated_at", Value: now},
		}); err != nil {
			return err
		}

		marker := model.NewRelation(types.RelationSupersedes, newNode.ID, oldID)
		if err := tx.Set(r.edges().Doc(string(marker.ID)), toEdgeDoc(marker)); err != nil {
			return err
		}

		for _, d := range incident {
			if types.RelationKind(d.Kind) == types.RelationSupersedes {
				continue
			}
			from, to := types.MemoryID(d.From), types.MemoryID(d.To)
			switch {
			case from == oldID && to != newNode.ID:
				from = newNode.ID
			case to == oldID && from != newNode.ID:
				to = newNode.ID
			default:
				continue
			}
			copied := model.NewRelation(types.RelationKind(d.Kind), from, to)
			copied.CreatedAt = d.CreatedAt
			if err := tx.Set(r.edges().Doc(string(copied.ID)), toEdgeDoc(copied)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mapError(err, "failed to supersede node",
			goerr.V("newID", newNode.ID), goerr.V("oldID", oldID))
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
