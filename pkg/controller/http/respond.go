package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}

// respondError maps domain sentinels onto HTTP status codes.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrLimitExceeded):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNodeNotFound),
		errors.Is(err, model.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	errutil.HandleHTTP(ctx, w, err, status)
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return goerr.Wrap(model.ErrInvalidInput, "invalid request body", goerr.V("error", err.Error()))
	}
	return nil
}

// memoryNodeResponse is the wire shape of a node. Embeddings are omitted:
// they are large and meaningless to API clients.
type memoryNodeResponse struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	ConceptType string    `json:"concept_type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toNodeResponse(node *model.MemoryNode) memoryNodeResponse {
	return memoryNodeResponse{
		ID:          node.ID.String(),
		Content:     node.Content,
		ConceptType: string(node.ConceptType),
		Status:      string(node.Status),
		CreatedAt:   node.CreatedAt,
		UpdatedAt:   node.UpdatedAt,
	}
}

type relationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"created_at"`
}

func toRelationResponse(rel *model.Relation) relationResponse {
	return relationResponse{
		ID:        rel.ID.String(),
		Kind:      string(rel.Kind),
		From:      rel.From.String(),
		To:        rel.To.String(),
		CreatedAt: rel.CreatedAt,
	}
}
