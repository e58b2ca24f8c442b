package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/extract"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// fakeExtractor splits text on periods and emits one fact per sentence with
// a deterministic one-hot embedding, so tests control extraction exactly.
type fakeExtractor struct {
	entities map[string][]string // sentence -> entity names
	subjects map[string]string   // sentence -> subject key
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		entities: make(map[string][]string),
		subjects: make(map[string]string),
	}
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, hint types.ConceptType) ([]*extract.Fact, error) {
	var facts []*extract.Fact
	for _, part := range strings.Split(text, ".") {
		sentence := strings.TrimSpace(part)
		if sentence == "" {
			continue
		}
		embedding, err := f.Embed(ctx, sentence)
		if err != nil {
			return nil, err
		}
		facts = append(facts, &extract.Fact{
			Content:     sentence,
			ConceptType: hint.Normalize(),
			SubjectKey:  f.subjects[sentence],
			Entities:    f.entities[sentence],
			Embedding:   embedding,
		})
	}
	return facts, nil
}

func (f *fakeExtractor) Embed(_ context.Context, text string) ([]float32, error) {
	sum := 0
	for _, r := range text {
		sum = (sum*31 + int(r)) % (model.EmbeddingDimension / 2)
	}
	v := make([]float32, model.EmbeddingDimension)
	v[sum] = 1
	return v, nil
}

func newUseCases(t *testing.T) (*usecase.UseCases, *memory.Memory, *fakeExtractor) {
	t.Helper()
	repo := memory.New()
	extractor := newFakeExtractor()
	return usecase.New(repo, extractor), repo, extractor
}

func TestRemember_StoresFactsAndLinks(t *testing.T) {
	uc, repo, extractor := newUseCases(t)
	ctx := context.Background()

	extractor.entities["I work at Acme"] = []string{"Acme"}

	results, err := uc.Remember(ctx, "I work at Acme. I maintain the billing service.", types.ConceptFact)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(2).Required()
	gt.Value(t, results[0].Decision).Equal(model.DecisionAdd)
	gt.Value(t, results[1].Decision).Equal(model.DecisionAdd)

	// Consecutive stored facts are connected.
	rels, err := repo.Graph().Neighbors(ctx, []types.MemoryID{results[0].MemoryID})
	gt.NoError(t, err).Required()
	gt.Array(t, rels).Length(1).Required()
	gt.Value(t, rels[0].Kind).Equal(types.RelationRelatesTo)
	gt.Value(t, rels[0].To).Equal(results[1].MemoryID)

	// The entity is linked to its fact.
	entities, err := repo.Entity().ListByMemoryIDs(ctx, []types.MemoryID{results[0].MemoryID})
	gt.NoError(t, err).Required()
	gt.Array(t, entities).Length(1).Required()
	gt.Value(t, entities[0].Name).Equal("Acme")
}

func TestRemember_DuplicateIsNoop(t *testing.T) {
	uc, repo, _ := newUseCases(t)
	ctx := context.Background()

	first, err := uc.Remember(ctx, "I prefer tabs over spaces.", types.ConceptPreference)
	gt.NoError(t, err).Required()
	gt.Array(t, first).Length(1).Required()

	second, err := uc.Remember(ctx, "I prefer tabs over spaces.", types.ConceptPreference)
	gt.NoError(t, err).Required()
	gt.Array(t, second).Length(1).Required()
	gt.Value(t, second[0].Decision).Equal(model.DecisionNoop)
	gt.Value(t, second[0].MemoryID).Equal(first[0].MemoryID)

	nodes, err := repo.Graph().ListByConceptType(ctx, types.ConceptPreference, model.TimeWindow{}, true, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, nodes).Length(1)
}

func TestRemember_EmptyExtractionReturnsNil(t *testing.T) {
	uc, _, _ := newUseCases(t)

	results, err := uc.Remember(context.Background(), "...", types.ConceptFact)
	gt.NoError(t, err).Required()
	gt.Value(t, results).Nil()
}

func TestSearch_FindsRememberedFact(t *testing.T) {
	uc, _, _ := newUseCases(t)
	ctx := context.Background()

	stored, err := uc.Remember(ctx, "I use neovim daily.", types.ConceptPreference)
	gt.NoError(t, err).Required()
	gt.Array(t, stored).Length(1).Required()

	hits, err := uc.Search(ctx, "I use neovim daily", types.SearchModeContextual, "")
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(1).Required()
	gt.Value(t, hits[0].Node.ID).Equal(stored[0].MemoryID)
}

func TestUpdateMemory_StripsMarkerAndReactivates(t *testing.T) {
	uc, repo, extractor := newUseCases(t)
	ctx := context.Background()

	embedding, err := extractor.Embed(ctx, "partial reasoning")
	gt.NoError(t, err).Required()
	node := model.NewMemoryNode(model.IncompleteMarker+" partial reasoning", embedding, types.ConceptExperience)
	node.Status = types.StatusIncomplete
	gt.NoError(t, repo.Graph().CreateNode(ctx, node)).Required()

	updated, err := uc.UpdateMemory(ctx, node.ID, model.IncompleteMarker+" finished: the cache was misconfigured")
	gt.NoError(t, err).Required()
	gt.Value(t, updated.Content).Equal("finished: the cache was misconfigured")
	gt.Value(t, updated.Status).Equal(types.StatusActive)
	gt.Bool(t, updated.HasIncompleteMarker()).False()

	stored, err := repo.Graph().GetNode(ctx, node.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.Status).Equal(types.StatusActive)
}

func TestUpdateMemory_RejectsEmptyContent(t *testing.T) {
	uc, repo, extractor := newUseCases(t)
	ctx := context.Background()

	embedding, err := extractor.Embed(ctx, "some fact")
	gt.NoError(t, err).Required()
	node := model.NewMemoryNode("some fact", embedding, types.ConceptFact)
	gt.NoError(t, repo.Graph().CreateNode(ctx, node)).Required()

	_, err = uc.UpdateMemory(ctx, node.ID, "   ")
	gt.Error(t, err).Is(model.ErrInvalidInput)

	_, err = uc.UpdateMemory(ctx, node.ID, model.IncompleteMarker)
	gt.Error(t, err).Is(model.ErrInvalidInput)
}

func TestDeleteMemory_RemovesNodeAndEdges(t *testing.T) {
	uc, repo, _ := newUseCases(t)
	ctx := context.Background()

	results, err := uc.Remember(ctx, "Fact one here. Fact two here.", types.ConceptFact)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(2).Required()

	gt.NoError(t, uc.DeleteMemory(ctx, results[0].MemoryID)).Required()

	_, err = uc.GetMemory(ctx, results[0].MemoryID)
	gt.Error(t, err).Is(model.ErrNodeNotFound)

	rels, err := repo.Graph().Neighbors(ctx, []types.MemoryID{results[1].MemoryID})
	gt.NoError(t, err).Required()
	gt.Array(t, rels).Length(0)
}

func TestStats_ReportsCountsAndCache(t *testing.T) {
	uc, _, _ := newUseCases(t)
	ctx := context.Background()

	_, err := uc.Remember(ctx, "I enjoy hiking.", types.ConceptPreference)
	gt.NoError(t, err).Required()

	_, err = uc.Search(ctx, "hiking", types.SearchModeContextual, "")
	gt.NoError(t, err).Required()

	report, err := uc.Stats(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Graph.NodesByStatus[types.StatusActive]).Equal(1)
	gt.Number(t, report.CacheLookups).Greater(0)
}
