package search

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// maxChains caps how many reasoning chains one query returns.
const maxChains = 5

// ReasoningChains finds causal paths anchored at the node best matching the
// seed embedding. Traversal follows IMPLIES/BECAUSE/CONTRADICTS edges only,
// bounded by the mode's hop depth; each chain presents its links oldest
// cause first.
func (e *Engine) ReasoningChains(ctx context.Context, embedding []float32, mode types.SearchMode) ([]*model.ReasoningChain, error) {
	mode = mode.Normalize()
	if len(embedding) != model.EmbeddingDimension {
		return nil, goerr.Wrap(model.ErrInvalidInput, "embedding dimension mismatch",
			goerr.V("got", len(embedding)), goerr.V("want", model.EmbeddingDimension))
	}

	seeds, err := e.repo.Graph().SimilarityQuery(ctx, embedding, 1, interfaces.SimilarityOptions{
		Statuses: e.searchStatuses(mode),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "chain seeding failed")
	}
	if len(seeds) == 0 || seeds[0].Similarity < e.minSeed {
		return nil, nil
	}
	seed := seeds[0]

	rels, err := e.repo.Graph().PathQuery(ctx, types.CausalRelationKinds(), seed.Node.ID, mode.MaxDepth())
	if err != nil {
		return nil, goerr.Wrap(err, "causal path query failed", goerr.V("seed", seed.Node.ID))
	}
	if len(rels) == 0 {
		return nil, nil
	}

	adjacency := make(map[types.MemoryID][]*model.Relation)
	for _, rel := range rels {
		adjacency[rel.From] = append(adjacency[rel.From], rel)
		adjacency[rel.To] = append(adjacency[rel.To], rel)
	}

	paths := e.collectPaths(seed.Node.ID, adjacency, mode.MaxDepth())

	nodes, err := e.resolveChainNodes(ctx, paths)
	if err != nil {
		return nil, err
	}

	chains := make([]*model.ReasoningChain, 0, len(paths))
	for _, path := range paths {
		chain := &model.ReasoningChain{
			Score: seed.Similarity * pow(e.decay, len(path)-1),
		}
		// Present causality in wall-clock order: the oldest relation is the
		// root cause, the newest the latest effect.
		ordered := append([]*model.Relation(nil), path...)
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		})
		for _, rel := range ordered {
			from, okFrom := nodes[rel.From]
			to, okTo := nodes[rel.To]
			if !okFrom || !okTo {
				continue
			}
			chain.Links = append(chain.Links, model.ChainLink{
				Relation: rel,
				From:     from,
				To:       to,
			})
		}
		if len(chain.Links) > 0 {
			chains = append(chains, chain)
		}
	}

	sort.SliceStable(chains, func(i, j int) bool {
		if chains[i].Score != chains[j].Score {
			return chains[i].Score > chains[j].Score
		}
		return len(chains[i].Links) > len(chains[j].Links)
	})
	if len(chains) > maxChains {
		chains = chains[:maxChains]
	}
	return chains, nil
}

// collectPaths enumerates maximal simple edge paths from the seed through
// the causal subgraph, depth-first, bounded by maxDepth edges.
func (e *Engine) collectPaths(seed types.MemoryID, adjacency map[types.MemoryID][]*model.Relation, maxDepth int) [][]*model.Relation {
	var paths [][]*model.Relation
	var walk func(at types.MemoryID, used map[types.RelationID]bool, path []*model.Relation)

	walk = func(at types.MemoryID, used map[types.RelationID]bool, path []*model.Relation) {
		extended := false
		if len(path) < maxDepth {
			for _, rel := range adjacency[at] {
				if used[rel.ID] {
					continue
				}
				next := rel.To
				if next == at {
					next = rel.From
				}
				used[rel.ID] = true
				walk(next, used, append(path, rel))
				delete(used, rel.ID)
				extended = true
			}
		}
		if !extended && len(path) > 0 {
			paths = append(paths, append([]*model.Relation(nil), path...))
		}
	}

	walk(seed, map[types.RelationID]bool{}, nil)
	return paths
}

func (e *Engine) resolveChainNodes(ctx context.Context, paths [][]*model.Relation) (map[types.MemoryID]*model.MemoryNode, error) {
	wanted := make(map[types.MemoryID]bool)
	for _, path := range paths {
		for _, rel := range path {
			wanted[rel.From] = true
			wanted[rel.To] = true
		}
	}

	nodes := make(map[types.MemoryID]*model.MemoryNode, len(wanted))
	for id := range wanted {
		node, err := e.repo.Graph().GetNode(ctx, id)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load chain node", goerr.V("id", id))
		}
		nodes[id] = node
	}
	return nodes, nil
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for range exp {
		result *= base
	}
	return result
}
