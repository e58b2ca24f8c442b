package decision_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/decision"
)

// embedAt returns a unit embedding with a single hot dimension, so two
// vectors are either identical (similarity 1) or orthogonal (similarity 0).
func embedAt(hot int) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[hot] = 1
	return v
}

func TestClassifyAndApply_DedupIdempotence(t *testing.T) {
	repo := memory.New()
	engine := decision.New(repo.Graph())
	ctx := context.Background()

	candidate := &model.Candidate{
		Content:     "prefers tabs over spaces",
		Embedding:   embedAt(0),
		ConceptType: types.ConceptPreference,
	}

	first, err := engine.ClassifyAndApply(ctx, candidate)
	gt.NoError(t, err).Required()
	gt.Value(t, first.Kind).Equal(model.DecisionAdd)
	gt.String(t, first.NodeID.String()).NotEqual("")

	second, err := engine.ClassifyAndApply(ctx, candidate)
	gt.NoError(t, err).Required()
	gt.Value(t, second.Kind).Equal(model.DecisionNoop)
	gt.Value(t, second.NodeID).Equal(first.NodeID)

	nodes, err := repo.Graph().ListByConceptType(ctx, types.ConceptPreference, model.TimeWindow{}, false, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, nodes).Length(1)
	gt.Value(t, nodes[0].Content).Equal("prefers tabs over spaces")
	gt.Value(t, nodes[0].Status).Equal(types.StatusActive)
}

func TestClassifyAndApply_SupersedeChain(t *testing.T) {
	repo := memory.New()
	engine := decision.New(repo.Graph())
	ctx := context.Background()

	first, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     "prefers light mode",
		Embedding:   embedAt(1),
		ConceptType: types.ConceptPreference,
	})
	gt.NoError(t, err).Required()
	gt.Value(t, first.Kind).Equal(model.DecisionAdd)

	second, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     "prefers dark mode",
		Embedding:   embedAt(1),
		ConceptType: types.ConceptPreference,
	})
	gt.NoError(t, err).Required()
	gt.Value(t, second.Kind).Equal(model.DecisionSupersede)
	gt.Value(t, second.SupersededID).Equal(first.NodeID)
	gt.Value(t, second.NodeID).NotEqual(first.NodeID)

	old, err := repo.Graph().GetNode(ctx, first.NodeID)
	gt.NoError(t, err).Required()
	gt.Value(t, old.Status).Equal(types.StatusSuperseded)

	current, err := repo.Graph().GetNode(ctx, second.NodeID)
	gt.NoError(t, err).Required()
	gt.Value(t, current.Status).Equal(types.StatusActive)

	rels, err := repo.Graph().Neighbors(ctx, []types.MemoryID{second.NodeID})
	gt.NoError(t, err).Required()

	found := false
	for _, rel := range rels {
		if rel.Kind == types.RelationSupersedes && rel.From == second.NodeID && rel.To == first.NodeID {
			found = true
		}
	}
	gt.Bool(t, found).True()
}

func TestClassifyAndApply_UpdateRefinement(t *testing.T) {
	repo := memory.New()
	engine := decision.New(repo.Graph())
	ctx := context.Background()

	first, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     "writes Go",
		Embedding:   embedAt(2),
		ConceptType: types.ConceptSkill,
	})
	gt.NoError(t, err).Required()

	second, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     "writes Go backend services daily",
		Embedding:   embedAt(2),
		ConceptType: types.ConceptSkill,
	})
	gt.NoError(t, err).Required()
	gt.Value(t, second.Kind).Equal(model.DecisionUpdate)
	gt.Value(t, second.NodeID).Equal(first.NodeID)

	node, err := repo.Graph().GetNode(ctx, first.NodeID)
	gt.NoError(t, err).Required()
	gt.Value(t, node.Content).Equal("writes Go backend services daily")
	gt.Value(t, node.Status).Equal(types.StatusActive)

	nodes, err := repo.Graph().ListByConceptType(ctx, types.ConceptSkill, model.TimeWindow{}, true, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, nodes).Length(1)
}

func TestClassifyAndApply_AmbiguousTieBreak(t *testing.T) {
	repo := memory.New()
	engine := decision.New(repo.Graph())
	ctx := context.Background()

	// Seed two nodes that both clear the duplicate threshold for the probe.
	seedTwin := func(content string) {
		node := model.NewMemoryNode(content, embedAt(3), types.ConceptFact)
		gt.NoError(t, repo.Graph().CreateNode(ctx, node)).Required()
	}
	seedTwin("the service runs in region one")
	seedTwin("the deployment lives in region one")

	res, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     "the service runs in region one",
		Embedding:   embedAt(3),
		ConceptType: types.ConceptFact,
	})
	gt.NoError(t, err).Required()
	gt.Bool(t, res.Ambiguous).True()
	gt.Value(t, res.Kind).Equal(model.DecisionNoop)
}

func TestClassifyAndApply_IncompleteAlwaysAdds(t *testing.T) {
	repo := memory.New()
	engine := decision.New(repo.Graph())
	ctx := context.Background()

	existing, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     "investigating the cache bug",
		Embedding:   embedAt(4),
		ConceptType: types.ConceptExperience,
	})
	gt.NoError(t, err).Required()

	recovered, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     model.IncompleteMarker + " investigating the cache bug",
		Embedding:   embedAt(4),
		ConceptType: types.ConceptExperience,
		Incomplete:  true,
	})
	gt.NoError(t, err).Required()
	gt.Value(t, recovered.Kind).Equal(model.DecisionAdd)
	gt.Value(t, recovered.NodeID).NotEqual(existing.NodeID)

	node, err := repo.Graph().GetNode(ctx, recovered.NodeID)
	gt.NoError(t, err).Required()
	gt.Value(t, node.Status).Equal(types.StatusIncomplete)
	gt.Bool(t, node.HasIncompleteMarker()).True()
}

func TestClassifyAndApply_ConceptTypesDoNotCollide(t *testing.T) {
	repo := memory.New()
	engine := decision.New(repo.Graph())
	ctx := context.Background()

	first, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     "ship the importer",
		Embedding:   embedAt(5),
		ConceptType: types.ConceptGoal,
	})
	gt.NoError(t, err).Required()
	gt.Value(t, first.Kind).Equal(model.DecisionAdd)

	second, err := engine.ClassifyAndApply(ctx, &model.Candidate{
		Content:     "ship the importer",
		Embedding:   embedAt(5),
		ConceptType: types.ConceptAchievement,
	})
	gt.NoError(t, err).Required()
	gt.Value(t, second.Kind).Equal(model.DecisionAdd)
	gt.Value(t, second.NodeID).NotEqual(first.NodeID)
}

func TestClassifyAndApply_InvalidInput(t *testing.T) {
	repo := memory.New()
	engine := decision.New(repo.Graph())
	ctx := context.Background()

	t.Run("unknown concept type", func(t *testing.T) {
		_, err := engine.ClassifyAndApply(ctx, &model.Candidate{
			Content:     "some fact",
			Embedding:   embedAt(6),
			ConceptType: types.ConceptType("mood"),
		})
		gt.Error(t, err).Is(model.ErrInvalidInput)
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := engine.ClassifyAndApply(ctx, &model.Candidate{
			Content:     "   ",
			Embedding:   embedAt(6),
			ConceptType: types.ConceptFact,
		})
		gt.Error(t, err).Is(model.ErrInvalidInput)
	})

	t.Run("wrong embedding dimension", func(t *testing.T) {
		_, err := engine.ClassifyAndApply(ctx, &model.Candidate{
			Content:     "some fact",
			Embedding:   []float32{0.1, 0.2},
			ConceptType: types.ConceptFact,
		})
		gt.Error(t, err).Is(model.ErrInvalidInput)
	})

	nodes, err := repo.Graph().ListByConceptType(ctx, types.ConceptFact, model.TimeWindow{}, true, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, nodes).Length(0)
}

func TestClassifyAndApply_ConcurrentSameSubject(t *testing.T) {
	repo := memory.New()
	engine := decision.New(repo.Graph())
	ctx := context.Background()

	const workers = 8
	done := make(chan error, workers)
	for range workers {
		go func() {
			_, err := engine.ClassifyAndApply(ctx, &model.Candidate{
				Content:     "timezone is UTC",
				Embedding:   embedAt(7),
				ConceptType: types.ConceptFact,
				SubjectKey:  "timezone",
			})
			done <- err
		}()
	}
	for range workers {
		gt.NoError(t, <-done).Required()
	}

	matches, err := repo.Graph().SimilarityQuery(ctx, embedAt(7), 10, interfaces.SimilarityOptions{
		ConceptType: types.ConceptFact,
	})
	gt.NoError(t, err).Required()
	gt.Array(t, matches).Length(1)
}
