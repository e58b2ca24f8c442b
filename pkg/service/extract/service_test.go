package extract_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/extract"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{`{"facts":[]}`}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn   func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	embeddingCalls int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	c.embeddingCalls++
	result := make([][]float64, len(input))
	for i := range input {
		v := make([]float64, dimension)
		v[0] = 1
		result[i] = v
	}
	return result, nil
}

func TestNew_RequiresLLMClient(t *testing.T) {
	_, err := extract.New(nil)
	gt.Value(t, err).NotNil()
}

func TestExtract_ParsesFacts(t *testing.T) {
	llm := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{`{
						"facts": [
							{
								"content": "The user prefers dark mode",
								"concept_type": "preference",
								"subject": "preference:theme",
								"entities": []
							},
							{
								"content": "The user works at Acme on the billing service",
								"concept_type": "fact",
								"subject": "",
								"entities": ["Acme"]
							}
						]
					}`}}, nil
				},
			}, nil
		},
	}

	svc, err := extract.New(llm)
	gt.NoError(t, err).Required()

	facts, err := svc.Extract(context.Background(), "I prefer dark mode. I work at Acme on billing.", types.ConceptFact)
	gt.NoError(t, err).Required()
	gt.Array(t, facts).Length(2).Required()

	gt.Value(t, facts[0].ConceptType).Equal(types.ConceptPreference)
	gt.Value(t, facts[0].SubjectKey).Equal("preference:theme")
	gt.Value(t, len(facts[0].Embedding)).Equal(model.EmbeddingDimension)

	gt.Value(t, facts[1].ConceptType).Equal(types.ConceptFact)
	gt.Array(t, facts[1].Entities).Length(1)
}

func TestExtract_UnknownConceptFallsBackToHint(t *testing.T) {
	llm := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{`{
						"facts": [
							{"content": "Shipped the migration", "concept_type": "milestone"}
						]
					}`}}, nil
				},
			}, nil
		},
	}

	svc, err := extract.New(llm)
	gt.NoError(t, err).Required()

	facts, err := svc.Extract(context.Background(), "Shipped the migration", types.ConceptAchievement)
	gt.NoError(t, err).Required()
	gt.Array(t, facts).Length(1).Required()
	gt.Value(t, facts[0].ConceptType).Equal(types.ConceptAchievement)
}

func TestExtract_EmptyFactsReturnsNil(t *testing.T) {
	svc, err := extract.New(&mockLLMClient{})
	gt.NoError(t, err).Required()

	facts, err := svc.Extract(context.Background(), "hm, nothing here", types.ConceptFact)
	gt.NoError(t, err).Required()
	gt.Value(t, facts).Nil()
}

func TestExtract_EmptyTextRejected(t *testing.T) {
	svc, err := extract.New(&mockLLMClient{})
	gt.NoError(t, err).Required()

	_, err = svc.Extract(context.Background(), "   ", types.ConceptFact)
	gt.Error(t, err).Is(model.ErrInvalidInput)
}

func TestEmbed_CachesByText(t *testing.T) {
	llm := &mockLLMClient{}
	svc, err := extract.New(llm)
	gt.NoError(t, err).Required()

	ctx := context.Background()
	first, err := svc.Embed(ctx, "same text")
	gt.NoError(t, err).Required()
	gt.Value(t, len(first)).Equal(model.EmbeddingDimension)

	_, err = svc.Embed(ctx, "same text")
	gt.NoError(t, err).Required()
	gt.Value(t, llm.embeddingCalls).Equal(1)

	_, err = svc.Embed(ctx, "different text")
	gt.NoError(t, err).Required()
	gt.Value(t, llm.embeddingCalls).Equal(2)
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := extract.BuildSystemPrompt()
	gt.String(t, prompt).Contains("memory extraction")
	gt.String(t, prompt).Contains("content")
	gt.String(t, prompt).Contains("concept_type")
	gt.String(t, prompt).Contains("subject")
	gt.String(t, prompt).Contains("entities")
}

func TestBuildUserPrompt(t *testing.T) {
	t.Run("includes hint when valid", func(t *testing.T) {
		prompt := extract.BuildUserPrompt("some text", types.ConceptSkill)
		gt.String(t, prompt).Contains("skill")
		gt.String(t, prompt).Contains("some text")
	})

	t.Run("omits hint when invalid", func(t *testing.T) {
		prompt := extract.BuildUserPrompt("some text", types.ConceptType(""))
		gt.String(t, prompt).Contains("some text")
	})
}
