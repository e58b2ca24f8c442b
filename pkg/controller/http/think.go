package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type thinkStartRequest struct {
	MaxThoughts        int `json:"max_thoughts,omitempty"`
	MaxDepth           int `json:"max_depth,omitempty"`
	ThinkingTimeoutSec int `json:"thinking_timeout_sec,omitempty"`
	SessionTTLSec      int `json:"session_ttl_sec,omitempty"`
}

func (s *Server) handleThinkStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req thinkStartRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	limits := &model.SessionLimits{
		MaxThoughts:     req.MaxThoughts,
		MaxDepth:        req.MaxDepth,
		ThinkingTimeout: time.Duration(req.ThinkingTimeoutSec) * time.Second,
		SessionTTL:      time.Duration(req.SessionTTLSec) * time.Second,
	}

	session, err := s.uc.StartThink(ctx, limits)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"session_id":   session.ID.String(),
		"state":        string(session.State),
		"max_thoughts": session.Limits.MaxThoughts,
		"max_depth":    session.Limits.MaxDepth,
	})
}

type thinkAddRequest struct {
	Content string `json:"content"`
	Parents []int  `json:"parents,omitempty"`
}

func (s *Server) handleThinkAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req thinkAddRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	res, err := s.uc.AddThought(ctx, sessionID(r), req.Content, req.Parents)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"index":         res.Index,
		"thought_count": res.ThoughtCount,
		"depth":         res.Depth,
	})
}

type thinkRecallRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
}

func (s *Server) handleThinkRecall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req thinkRecallRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	res, err := s.uc.RecallIntoSession(ctx, sessionID(r), req.Query, types.SearchMode(req.Mode))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"indices":        res.Indices,
		"recalled_count": res.RecalledCount,
	})
}

type thinkConcludeRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleThinkConclude(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req thinkConcludeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	index, err := s.uc.ConcludeThink(ctx, sessionID(r), req.Index)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"conclusion_index": index})
}

type thinkCommitRequest struct {
	ConceptType string `json:"concept_type,omitempty"`
}

func (s *Server) handleThinkCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req thinkCommitRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	res, err := s.uc.CommitThink(ctx, sessionID(r), types.ConceptType(req.ConceptType))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"memory_id":          res.MemoryID.String(),
		"decision":           string(res.Decision),
		"thoughts_processed": res.ThoughtsProcessed,
	})
}

func (s *Server) handleThinkDiscard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := s.uc.DiscardThink(ctx, sessionID(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"thoughts_dropped": count})
}

func (s *Server) handleThinkStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := s.uc.ThinkStatus(ctx, sessionID(r))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"session_id":     status.SessionID.String(),
		"state":          string(status.State),
		"thought_count":  status.ThoughtCount,
		"max_depth_used": status.MaxDepthUsed,
		"has_conclusion": status.HasConclusion,
		"elapsed_sec":    status.Elapsed.Seconds(),
	})
}

func sessionID(r *http.Request) types.SessionID {
	return types.SessionID(chi.URLParam(r, "sessionID"))
}
