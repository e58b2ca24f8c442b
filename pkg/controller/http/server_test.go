package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	server "github.com/secmon-lab/mnemosyne/pkg/controller/http"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/extract"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// sentenceExtractor emits one fact per sentence with a deterministic
// embedding so handler tests control storage outcomes exactly.
type sentenceExtractor struct{}

func (sentenceExtractor) Extract(ctx context.Context, text string, hint types.ConceptType) ([]*extract.Fact, error) {
	var facts []*extract.Fact
	for _, part := range strings.Split(text, ".") {
		sentence := strings.TrimSpace(part)
		if sentence == "" {
			continue
		}
		embedding, _ := sentenceExtractor{}.Embed(ctx, sentence)
		facts = append(facts, &extract.Fact{
			Content:     sentence,
			ConceptType: hint.Normalize(),
			Embedding:   embedding,
		})
	}
	return facts, nil
}

func (sentenceExtractor) Embed(_ context.Context, text string) ([]float32, error) {
	sum := 0
	for _, r := range text {
		sum = (sum*31 + int(r)) % (model.EmbeddingDimension / 2)
	}
	v := make([]float32, model.EmbeddingDimension)
	v[sum] = 1
	return v, nil
}

func newTestServer() *server.Server {
	uc := usecase.New(memory.New(), sentenceExtractor{})
	return server.New(uc)
}

func doJSON(t *testing.T, srv *server.Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		gt.NoError(t, err).Required()
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			parsed = nil
		}
	}
	return rec, parsed
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer()
	rec, body := doJSON(t, srv, http.MethodGet, "/health", nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, body["status"]).Equal("ok")
}

func TestServer_MemoryLifecycle(t *testing.T) {
	srv := newTestServer()

	// Remember
	rec, body := doJSON(t, srv, http.MethodPost, "/api/memory", map[string]any{
		"text":         "I prefer dark mode",
		"concept_type": "preference",
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	facts := body["facts"].([]any)
	gt.Array(t, facts).Length(1).Required()
	fact := facts[0].(map[string]any)
	gt.Value(t, fact["decision"]).Equal("ADD")
	memoryID := fact["memory_id"].(string)

	// Get
	rec, body = doJSON(t, srv, http.MethodGet, "/api/memory/"+memoryID, nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, body["content"]).Equal("I prefer dark mode")
	gt.Value(t, body["concept_type"]).Equal("preference")

	// Search
	rec, body = doJSON(t, srv, http.MethodPost, "/api/memory/search", map[string]any{
		"query": "I prefer dark mode",
		"mode":  "contextual",
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	hits := body["hits"].([]any)
	gt.Array(t, hits).Length(1)

	// Update
	rec, body = doJSON(t, srv, http.MethodPut, "/api/memory/"+memoryID, map[string]any{
		"content": "I prefer dark mode everywhere",
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, body["content"]).Equal("I prefer dark mode everywhere")

	// Concept listing
	rec, body = doJSON(t, srv, http.MethodGet, "/api/memory/concept/preference?mode=contextual", nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	nodes := body["nodes"].([]any)
	gt.Array(t, nodes).Length(1)

	// Delete
	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/memory/"+memoryID, nil)
	gt.Value(t, rec.Code).Equal(http.StatusNoContent)

	// Gone
	rec, _ = doJSON(t, srv, http.MethodGet, "/api/memory/"+memoryID, nil)
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)
}

func TestServer_ThinkLifecycle(t *testing.T) {
	srv := newTestServer()

	rec, body := doJSON(t, srv, http.MethodPost, "/api/think", map[string]any{
		"max_thoughts": 8,
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	sessionID := body["session_id"].(string)
	gt.Value(t, body["state"]).Equal("active")

	rec, body = doJSON(t, srv, http.MethodPost, "/api/think/"+sessionID+"/thoughts", map[string]any{
		"content": "first thought",
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, body["index"]).Equal(float64(0))

	rec, body = doJSON(t, srv, http.MethodPost, "/api/think/"+sessionID+"/conclude", map[string]any{
		"index": 0,
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	rec, body = doJSON(t, srv, http.MethodPost, "/api/think/"+sessionID+"/commit", map[string]any{
		"concept_type": "experience",
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, body["decision"]).Equal("ADD")

	// Session destroyed after commit.
	rec, _ = doJSON(t, srv, http.MethodGet, "/api/think/"+sessionID, nil)
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)
}

func TestServer_ThinkDiscard(t *testing.T) {
	srv := newTestServer()

	_, body := doJSON(t, srv, http.MethodPost, "/api/think", map[string]any{})
	sessionID := body["session_id"].(string)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/think/"+sessionID+"/thoughts", map[string]any{
		"content": "scratch",
	})
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	rec, body = doJSON(t, srv, http.MethodPost, "/api/think/"+sessionID+"/discard", nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, body["thoughts_dropped"]).Equal(float64(1))

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/think/"+sessionID+"/discard", nil)
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)
}

func TestServer_ErrorMapping(t *testing.T) {
	srv := newTestServer()

	// Unknown node.
	rec, _ := doJSON(t, srv, http.MethodGet, "/api/memory/mem_000000000000", nil)
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/api/memory/search", strings.NewReader("{not json"))
	recorder := httptest.NewRecorder()
	srv.ServeHTTP(recorder, req)
	gt.Value(t, recorder.Code).Equal(http.StatusBadRequest)

	// Invalid transition: commit without conclude.
	_, body := doJSON(t, srv, http.MethodPost, "/api/think", map[string]any{})
	sessionID := body["session_id"].(string)
	rec, _ = doJSON(t, srv, http.MethodPost, "/api/think/"+sessionID+"/commit", map[string]any{})
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestServer_Stats(t *testing.T) {
	srv := newTestServer()

	_, _ = doJSON(t, srv, http.MethodPost, "/api/memory", map[string]any{
		"text": "I maintain the payments service",
	})

	rec, body := doJSON(t, srv, http.MethodGet, "/api/stats", nil)
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	nodes := body["nodes_by_status"].(map[string]any)
	gt.Value(t, nodes["active"]).Equal(float64(1))
}
