package core

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/agent/tool"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

const searchModeDescription = "Search tier: recent (last 4 hours, 1 hop), contextual (last 30 days, 2 hops, default), deep (last 90 days, 3 hops), or full (everything including superseded memories, 4 hops)"

// searchMemoryTool runs tiered semantic recall over the memory graph
type searchMemoryTool struct {
	uc *usecase.UseCases
}

func (t *searchMemoryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "search_memory",
		Description: "Search memories by meaning. Results include graph neighbors of the best matches, ranked by similarity with per-hop decay.",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "Search query text",
				Required:    true,
			},
			"mode": {
				Type:        gollem.TypeString,
				Description: searchModeDescription,
				Required:    false,
			},
			"concept_type": {
				Type:        gollem.TypeString,
				Description: "Optional filter on fact category",
				Required:    false,
			},
		},
	}
}

func (t *searchMemoryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	mode, _ := args["mode"].(string)
	conceptType, _ := args["concept_type"].(string)

	tool.Update(ctx, fmt.Sprintf("Searching memories: %s", query))

	hits, err := t.uc.Search(ctx, query, types.SearchMode(mode), types.ConceptType(conceptType))
	if err != nil {
		return nil, goerr.Wrap(err, "memory search failed")
	}

	results := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		results = append(results, map[string]any{
			"memory_id":    hit.Node.ID.String(),
			"content":      hit.Node.Content,
			"concept_type": string(hit.Node.ConceptType),
			"status":       string(hit.Node.Status),
			"score":        hit.Score,
			"hop_distance": hit.HopDistance,
		})
	}
	return map[string]any{"hits": results, "count": len(results)}, nil
}

// searchByConceptTool lists memories of one category inside a time window
type searchByConceptTool struct {
	uc *usecase.UseCases
}

func (t *searchByConceptTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "search_by_concept",
		Description: "List memories of one category (skill, preference, goal, fact, opinion, experience, achievement) inside the mode's time window, newest first.",
		Parameters: map[string]*gollem.Parameter{
			"concept_type": {
				Type:        gollem.TypeString,
				Description: "The fact category to list",
				Required:    true,
			},
			"mode": {
				Type:        gollem.TypeString,
				Description: searchModeDescription,
				Required:    false,
			},
		},
	}
}

func (t *searchByConceptTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	conceptType, _ := args["concept_type"].(string)
	if conceptType == "" {
		return nil, fmt.Errorf("concept_type is required")
	}
	mode, _ := args["mode"].(string)

	nodes, err := t.uc.SearchByConcept(ctx, types.ConceptType(conceptType), types.SearchMode(mode))
	if err != nil {
		return nil, goerr.Wrap(err, "concept listing failed", goerr.V("conceptType", conceptType))
	}

	results := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		results = append(results, map[string]any{
			"memory_id":  node.ID.String(),
			"content":    node.Content,
			"status":     string(node.Status),
			"updated_at": node.UpdatedAt,
		})
	}
	return map[string]any{"memories": results, "count": len(results)}, nil
}

// memoryGraphTool returns the neighborhood subgraph around one memory
type memoryGraphTool struct {
	uc *usecase.UseCases
}

func (t *memoryGraphTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "get_memory_graph",
		Description: "Inspect the relations around one memory: connected memories, typed edges between them, and linked entities. Depth is capped at 4 hops.",
		Parameters: map[string]*gollem.Parameter{
			"memory_id": {
				Type:        gollem.TypeString,
				Description: "The ID of the memory at the center of the subgraph",
				Required:    true,
			},
			"depth": {
				Type:        gollem.TypeInteger,
				Description: "How many hops to include (default: 1, max: 4)",
				Required:    false,
			},
		},
	}
}

func (t *memoryGraphTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	memoryID, _ := args["memory_id"].(string)
	if memoryID == "" {
		return nil, fmt.Errorf("memory_id is required")
	}
	depth := 1
	if v, err := extractInt64(args, "depth"); err == nil && v > 0 {
		depth = int(v)
	}

	view, err := t.uc.MemoryGraph(ctx, types.MemoryID(memoryID), depth)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory graph", goerr.V("memoryID", memoryID))
	}

	nodes := make([]map[string]any, 0, len(view.Nodes))
	for _, node := range view.Nodes {
		nodes = append(nodes, map[string]any{
			"memory_id": node.ID.String(),
			"content":   node.Content,
			"status":    string(node.Status),
		})
	}
	relations := make([]map[string]any, 0, len(view.Relations))
	for _, rel := range view.Relations {
		relations = append(relations, map[string]any{
			"kind": string(rel.Kind),
			"from": rel.From.String(),
			"to":   rel.To.String(),
		})
	}
	entities := make([]map[string]any, 0, len(view.Entities))
	for _, entity := range view.Entities {
		entities = append(entities, map[string]any{
			"name": entity.Name,
		})
	}

	return map[string]any{
		"center":    view.Center.String(),
		"nodes":     nodes,
		"relations": relations,
		"entities":  entities,
	}, nil
}

// reasoningChainTool surfaces causal paths anchored at the query's best match
type reasoningChainTool struct {
	uc *usecase.UseCases
}

func (t *reasoningChainTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "reasoning_chain",
		Description: "Find causal chains (IMPLIES/BECAUSE/CONTRADICTS paths) through memories related to the query, oldest cause first. Use this to answer why-questions.",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "What to explain",
				Required:    true,
			},
			"mode": {
				Type:        gollem.TypeString,
				Description: searchModeDescription,
				Required:    false,
			},
		},
	}
}

func (t *reasoningChainTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	mode, _ := args["mode"].(string)

	tool.Update(ctx, fmt.Sprintf("Tracing reasoning chains: %s", query))

	chains, err := t.uc.ReasoningChains(ctx, query, types.SearchMode(mode))
	if err != nil {
		return nil, goerr.Wrap(err, "reasoning chain query failed")
	}

	results := make([]map[string]any, 0, len(chains))
	for _, chain := range chains {
		links := make([]map[string]any, 0, len(chain.Links))
		for _, link := range chain.Links {
			links = append(links, map[string]any{
				"kind": string(link.Relation.Kind),
				"from": link.From.Content,
				"to":   link.To.Content,
			})
		}
		results = append(results, map[string]any{
			"links": links,
			"score": chain.Score,
		})
	}
	return map[string]any{"chains": results, "count": len(results)}, nil
}

// statsTool summarizes the stored graph
type statsTool struct {
	uc *usecase.UseCases
}

func (t *statsTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "stats",
		Description: "Summarize the memory graph: node counts by status, edge counts by kind, entity count, and recall cache counters.",
		Parameters:  map[string]*gollem.Parameter{},
	}
}

func (t *statsTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	report, err := t.uc.Stats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to collect stats")
	}

	nodes := make(map[string]any, len(report.Graph.NodesByStatus))
	for status, count := range report.Graph.NodesByStatus {
		nodes[string(status)] = count
	}
	edges := make(map[string]any, len(report.Graph.EdgesByKind))
	for kind, count := range report.Graph.EdgesByKind {
		edges[string(kind)] = count
	}

	return map[string]any{
		"nodes_by_status": nodes,
		"edges_by_kind":   edges,
		"entity_count":    report.Graph.EntityCount,
		"cache_hits":      report.CacheHits,
		"cache_lookups":   report.CacheLookups,
	}, nil
}
