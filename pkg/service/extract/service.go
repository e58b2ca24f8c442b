package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	gocache "github.com/patrickmn/go-cache"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// DefaultEmbedCacheTTL bounds how long a text's embedding is reused.
const DefaultEmbedCacheTTL = 10 * time.Minute

// client implements Service interface
type client struct {
	llmClient  gollem.LLMClient
	embedCache *gocache.Cache
}

// Option is a functional option for client configuration
type Option func(*client)

// WithEmbedCacheTTL overrides the embedding cache lifetime. Zero disables
// caching entirely.
func WithEmbedCacheTTL(ttl time.Duration) Option {
	return func(c *client) {
		if ttl <= 0 {
			c.embedCache = nil
			return
		}
		c.embedCache = gocache.New(ttl, ttl*2)
	}
}

// New creates a new extraction service with the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &client{
		llmClient:  llmClient,
		embedCache: gocache.New(DefaultEmbedCacheTTL, DefaultEmbedCacheTTL*2),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Extract analyzes text and returns discrete, storage-ready facts
func (c *client) Extract(ctx context.Context, text string, hint types.ConceptType) ([]*Fact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "extraction text is empty")
	}

	systemPrompt := buildSystemPrompt()
	userPrompt := buildUserPrompt(text, hint)
	schema := c.buildResponseSchema()

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content from LLM")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("empty LLM response")
	}

	var llmResp llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &llmResp); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", resp.Texts[0]))
	}

	if len(llmResp.Facts) == 0 {
		return nil, nil
	}

	facts := make([]*Fact, 0, len(llmResp.Facts))
	for _, extracted := range llmResp.Facts {
		if strings.TrimSpace(extracted.Content) == "" {
			continue
		}

		conceptType := types.ConceptType(extracted.ConceptType)
		if !conceptType.IsValid() {
			logging.From(ctx).Warn("LLM returned unknown concept type, falling back",
				"concept_type", extracted.ConceptType,
				"fallback", hint.Normalize(),
			)
			conceptType = hint.Normalize()
		}

		embedding, err := c.Embed(ctx, extracted.Content)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed extracted fact",
				goerr.V("content", extracted.Content))
		}

		facts = append(facts, &Fact{
			Content:     extracted.Content,
			ConceptType: conceptType,
			SubjectKey:  extracted.Subject,
			Entities:    extracted.Entities,
			Embedding:   embedding,
		})
	}

	return facts, nil
}

// Embed generates an embedding vector for the given text
func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "embedding text is empty")
	}

	key := embedCacheKey(text)
	if c.embedCache != nil {
		if cached, ok := c.embedCache.Get(key); ok {
			return cached.([]float32), nil
		}
	}

	embeddings, err := c.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}

	if c.embedCache != nil {
		c.embedCache.SetDefault(key, result)
	}
	return result, nil
}

func embedCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// buildSystemPrompt creates the fixed system prompt for LLM analysis
func buildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are a memory extraction assistant. Your task is to break the given text into discrete, self-contained facts worth remembering about the speaker or their world.\n\n")
	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. Split the text into atomic facts. Each fact must stand on its own without the surrounding text.\n")
	sb.WriteString("2. For each fact, provide:\n")
	sb.WriteString("   - content: The fact restated as one clear sentence (in the same language as the input)\n")
	sb.WriteString("   - concept_type: One of skill, preference, goal, fact, opinion, experience, achievement\n")
	sb.WriteString("   - subject: A stable key identifying what the fact is about, e.g. \"preference:editor\" or \"goal:certification\". Leave empty if no stable subject exists.\n")
	sb.WriteString("   - entities: Named entities (people, tools, places, organizations) mentioned in the fact\n")
	sb.WriteString("3. Do not invent facts that are not stated or clearly implied.\n")
	sb.WriteString("4. If the text contains nothing worth remembering, return an empty array.\n")

	return sb.String()
}

// buildUserPrompt creates the user prompt with the text and concept hint
func buildUserPrompt(text string, hint types.ConceptType) string {
	var sb strings.Builder

	if hint.IsValid() {
		fmt.Fprintf(&sb, "The caller suggests these facts are mostly of type %q. Use it when a fact is ambiguous, but override it when the text clearly says otherwise.\n\n", hint)
	}

	sb.WriteString("## Text to analyze:\n\n")
	sb.WriteString(text)
	sb.WriteString("\n")

	return sb.String()
}

// buildResponseSchema creates the JSON schema for structured output
func (c *client) buildResponseSchema() *gollem.Parameter {
	conceptNames := make([]string, 0, len(types.AllConceptTypes()))
	for _, ct := range types.AllConceptTypes() {
		conceptNames = append(conceptNames, string(ct))
	}

	return &gollem.Parameter{
		Title:       "FactExtractionResponse",
		Description: "Response containing the facts extracted from the input text",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"facts": {
				Type:        gollem.TypeArray,
				Description: "List of discrete facts found in the text",
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"content": {
							Type:        gollem.TypeString,
							Description: "The fact as one self-contained sentence",
							Required:    true,
						},
						"concept_type": {
							Type:        gollem.TypeString,
							Description: "Category of the fact: " + strings.Join(conceptNames, ", "),
							Required:    true,
						},
						"subject": {
							Type:        gollem.TypeString,
							Description: "Stable subject key such as \"preference:editor\", empty if none",
						},
						"entities": {
							Type:        gollem.TypeArray,
							Description: "Named entities mentioned in the fact",
							Items: &gollem.Parameter{
								Type: gollem.TypeString,
							},
						},
					},
				},
				Required: true,
			},
		},
	}
}
