package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// RememberedFact reports how one extracted fact was stored.
type RememberedFact struct {
	Content  string
	MemoryID types.MemoryID
	Decision model.DecisionKind
	Entities []string
}

// Remember extracts discrete facts from free text and routes each through
// the decision engine. Entities reported by extraction are upserted and
// linked; consecutive stored facts from the same text get a RELATES_TO edge
// so a multi-fact statement stays connected in the graph.
func (uc *UseCases) Remember(ctx context.Context, text string, hint types.ConceptType) ([]*RememberedFact, error) {
	facts, err := uc.extractor.Extract(ctx, text, hint)
	if err != nil {
		return nil, goerr.Wrap(err, "fact extraction failed")
	}
	if len(facts) == 0 {
		return nil, nil
	}

	results := make([]*RememberedFact, 0, len(facts))
	var prevStored types.MemoryID

	for _, fact := range facts {
		dec, err := uc.decision.ClassifyAndApply(ctx, &model.Candidate{
			Content:     fact.Content,
			Embedding:   fact.Embedding,
			ConceptType: fact.ConceptType,
			SubjectKey:  fact.SubjectKey,
		})
		if err != nil {
			return results, goerr.Wrap(err, "failed to store extracted fact",
				goerr.V("content", fact.Content))
		}

		for _, name := range fact.Entities {
			if strings.TrimSpace(name) == "" {
				continue
			}
			if _, err := uc.repo.Entity().Upsert(ctx, name, dec.NodeID); err != nil {
				errutil.Handle(ctx, err, "failed to upsert entity")
			}
		}

		if dec.Kind != model.DecisionNoop {
			if prevStored != "" && prevStored != dec.NodeID {
				rel := model.NewRelation(types.RelationRelatesTo, prevStored, dec.NodeID)
				if err := uc.repo.Graph().CreateEdge(ctx, rel); err != nil {
					errutil.Handle(ctx, err, "failed to link consecutive facts")
				}
			}
			prevStored = dec.NodeID
		}

		results = append(results, &RememberedFact{
			Content:  fact.Content,
			MemoryID: dec.NodeID,
			Decision: dec.Kind,
			Entities: fact.Entities,
		})
	}

	uc.search.InvalidateCache()

	logging.From(ctx).Info("remembered facts",
		"extracted", len(facts),
		"stored", len(results),
	)
	return results, nil
}

// Search embeds the query text and runs tiered recall.
func (uc *UseCases) Search(ctx context.Context, query string, mode types.SearchMode, conceptFilter types.ConceptType) ([]*model.SearchHit, error) {
	embedding, err := uc.extractor.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query")
	}
	return uc.search.Search(ctx, embedding, mode, conceptFilter)
}

// SearchByConcept lists nodes of one concept type inside the mode's window,
// newest first, without a query embedding.
func (uc *UseCases) SearchByConcept(ctx context.Context, conceptType types.ConceptType, mode types.SearchMode) ([]*model.MemoryNode, error) {
	return uc.search.SearchByConcept(ctx, conceptType, mode)
}

// ReasoningChains embeds the query and returns causal chains anchored at its
// nearest node.
func (uc *UseCases) ReasoningChains(ctx context.Context, query string, mode types.SearchMode) ([]*model.ReasoningChain, error) {
	embedding, err := uc.extractor.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed chain query")
	}
	return uc.search.ReasoningChains(ctx, embedding, mode)
}

// GetMemory retrieves one node by ID.
func (uc *UseCases) GetMemory(ctx context.Context, id types.MemoryID) (*model.MemoryNode, error) {
	return uc.repo.Graph().GetNode(ctx, id)
}

// UpdateMemory rewrites a node's content and re-embeds it. Updating an
// incomplete node strips the marker and reactivates it: this is how a
// timeout-recovered session graduates into a normal memory.
func (uc *UseCases) UpdateMemory(ctx context.Context, id types.MemoryID, content string) (*model.MemoryNode, error) {
	if strings.TrimSpace(content) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "memory content is empty", goerr.V("id", id))
	}

	node, err := uc.repo.Graph().GetNode(ctx, id)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(strings.TrimPrefix(content, model.IncompleteMarker))
	if content == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "memory content is empty after marker removal", goerr.V("id", id))
	}

	embedding, err := uc.extractor.Embed(ctx, content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to re-embed memory", goerr.V("id", id))
	}

	node.Content = content
	node.Embedding = embedding
	node.UpdatedAt = time.Now()
	if node.Status == types.StatusIncomplete {
		node.Status = types.StatusActive
	}

	if err := uc.repo.Graph().UpdateNode(ctx, node); err != nil {
		return nil, goerr.Wrap(err, "failed to update memory", goerr.V("id", id))
	}
	uc.search.InvalidateCache()
	return node, nil
}

// DeleteMemory removes a node and its incident edges.
func (uc *UseCases) DeleteMemory(ctx context.Context, id types.MemoryID) error {
	if err := uc.repo.Graph().DeleteNode(ctx, id); err != nil {
		return err
	}
	uc.search.InvalidateCache()
	return nil
}

// MemoryGraph returns the bounded neighborhood subgraph around one node.
func (uc *UseCases) MemoryGraph(ctx context.Context, id types.MemoryID, depth int) (*model.GraphView, error) {
	return uc.search.MemoryGraph(ctx, id, depth)
}

// StatsReport combines store counts with recall cache counters.
type StatsReport struct {
	Graph        *model.GraphStats
	CacheHits    int64
	CacheLookups int64
}

// Stats summarizes the stored graph and the search cache.
func (uc *UseCases) Stats(ctx context.Context) (*StatsReport, error) {
	graphStats, err := uc.repo.Stats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to collect graph stats")
	}
	hits, lookups := uc.search.CacheStats()
	return &StatsReport{
		Graph:        graphStats,
		CacheHits:    hits,
		CacheLookups: lookups,
	}, nil
}
