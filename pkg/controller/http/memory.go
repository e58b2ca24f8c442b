package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type rememberRequest struct {
	Text        string `json:"text"`
	ConceptType string `json:"concept_type,omitempty"`
}

type rememberedFactResponse struct {
	Content  string   `json:"content"`
	MemoryID string   `json:"memory_id"`
	Decision string   `json:"decision"`
	Entities []string `json:"entities,omitempty"`
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req rememberRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	results, err := s.uc.Remember(ctx, req.Text, types.ConceptType(req.ConceptType))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	facts := make([]rememberedFactResponse, 0, len(results))
	for _, res := range results {
		facts = append(facts, rememberedFactResponse{
			Content:  res.Content,
			MemoryID: res.MemoryID.String(),
			Decision: string(res.Decision),
			Entities: res.Entities,
		})
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"facts": facts})
}

type searchRequest struct {
	Query       string `json:"query"`
	Mode        string `json:"mode,omitempty"`
	ConceptType string `json:"concept_type,omitempty"`
}

type searchHitResponse struct {
	Node        memoryNodeResponse `json:"node"`
	Score       float64            `json:"score"`
	HopDistance int                `json:"hop_distance"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	hits, err := s.uc.Search(ctx, req.Query, types.SearchMode(req.Mode), types.ConceptType(req.ConceptType))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	results := make([]searchHitResponse, 0, len(hits))
	for _, hit := range hits {
		results = append(results, searchHitResponse{
			Node:        toNodeResponse(hit.Node),
			Score:       hit.Score,
			HopDistance: hit.HopDistance,
		})
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"hits": results})
}

func (s *Server) handleSearchByConcept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conceptType := types.ConceptType(chi.URLParam(r, "type"))
	mode := types.SearchMode(r.URL.Query().Get("mode"))

	nodes, err := s.uc.SearchByConcept(ctx, conceptType, mode)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	results := make([]memoryNodeResponse, 0, len(nodes))
	for _, node := range nodes {
		results = append(results, toNodeResponse(node))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"nodes": results})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	node, err := s.uc.GetMemory(ctx, types.MemoryID(chi.URLParam(r, "memoryID")))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toNodeResponse(node))
}

type updateMemoryRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateMemoryRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	node, err := s.uc.UpdateMemory(ctx, types.MemoryID(chi.URLParam(r, "memoryID")), req.Content)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toNodeResponse(node))
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.uc.DeleteMemory(ctx, types.MemoryID(chi.URLParam(r, "memoryID"))); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type memoryGraphRequest struct {
	ID    string `json:"id"`
	Depth int    `json:"depth,omitempty"`
}

type entityResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemoryIDs []string `json:"memory_ids"`
}

func (s *Server) handleMemoryGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req memoryGraphRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	view, err := s.uc.MemoryGraph(ctx, types.MemoryID(req.ID), req.Depth)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	nodes := make([]memoryNodeResponse, 0, len(view.Nodes))
	for _, node := range view.Nodes {
		nodes = append(nodes, toNodeResponse(node))
	}
	relations := make([]relationResponse, 0, len(view.Relations))
	for _, rel := range view.Relations {
		relations = append(relations, toRelationResponse(rel))
	}
	entities := make([]entityResponse, 0, len(view.Entities))
	for _, entity := range view.Entities {
		ids := make([]string, 0, len(entity.MemoryIDs))
		for _, id := range entity.MemoryIDs {
			ids = append(ids, id.String())
		}
		entities = append(entities, entityResponse{
			ID:        entity.ID.String(),
			Name:      entity.Name,
			MemoryIDs: ids,
		})
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"center":    view.Center.String(),
		"nodes":     nodes,
		"relations": relations,
		"entities":  entities,
	})
}

type reasoningChainsRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
}

type chainLinkResponse struct {
	Relation relationResponse   `json:"relation"`
	From     memoryNodeResponse `json:"from"`
	To       memoryNodeResponse `json:"to"`
}

type reasoningChainResponse struct {
	Links []chainLinkResponse `json:"links"`
	Score float64             `json:"score"`
}

func (s *Server) handleReasoningChains(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reasoningChainsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	chains, err := s.uc.ReasoningChains(ctx, req.Query, types.SearchMode(req.Mode))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	results := make([]reasoningChainResponse, 0, len(chains))
	for _, chain := range chains {
		links := make([]chainLinkResponse, 0, len(chain.Links))
		for _, link := range chain.Links {
			links = append(links, chainLinkResponse{
				Relation: toRelationResponse(link.Relation),
				From:     toNodeResponse(link.From),
				To:       toNodeResponse(link.To),
			})
		}
		results = append(results, reasoningChainResponse{
			Links: links,
			Score: chain.Score,
		})
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"chains": results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := s.uc.Stats(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	nodes := make(map[string]int, len(report.Graph.NodesByStatus))
	for status, count := range report.Graph.NodesByStatus {
		nodes[string(status)] = count
	}
	edges := make(map[string]int, len(report.Graph.EdgesByKind))
	for kind, count := range report.Graph.EdgesByKind {
		edges[string(kind)] = count
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"nodes_by_status": nodes,
		"edges_by_kind":   edges,
		"entity_count":    report.Graph.EntityCount,
		"cache_hits":      report.CacheHits,
		"cache_lookups":   report.CacheLookups,
	})
}
