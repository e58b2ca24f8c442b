package decision

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

const (
	// DefaultDuplicateThreshold is tuned so near-paraphrases of the same fact
	// collide while related-but-distinct facts do not.
	DefaultDuplicateThreshold = 0.92

	// DefaultTopK bounds the similarity query used for duplicate detection.
	DefaultTopK = 5
)

// Engine classifies incoming candidates against the memory graph and applies
// the outcome. It is the only writer of the shared graph; every call performs
// exactly one write transaction (or none for NOOP).
type Engine struct {
	repo      interfaces.GraphRepository
	threshold float64
	topK      int
	locks     *keyedMutex
}

// Option is a functional option for Engine configuration
type Option func(*Engine)

// WithDuplicateThreshold overrides the cosine similarity above which a
// candidate is considered a duplicate of an existing node.
func WithDuplicateThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.threshold = threshold
		}
	}
}

// WithTopK overrides how many similar nodes are fetched for classification.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// New creates a decision engine on top of the given graph store.
func New(repo interfaces.GraphRepository, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		threshold: DefaultDuplicateThreshold,
		topK:      DefaultTopK,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClassifyAndApply decides ADD/UPDATE/SUPERSEDE/NOOP for the candidate and
// applies the outcome to the graph in one write transaction. Calls for the
// same subject key are serialized; reads are never blocked.
func (e *Engine) ClassifyAndApply(ctx context.Context, candidate *model.Candidate) (*model.Decision, error) {
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(candidate.LockKey())
	defer unlock()

	// Timeout-recovered content is always stored as a fresh incomplete node.
	// It must never merge into or replace concluded memory.
	if candidate.Incomplete {
		return e.addNode(ctx, candidate, types.StatusIncomplete)
	}

	matches, err := e.repo.SimilarityQuery(ctx, candidate.Embedding, e.topK, interfaces.SimilarityOptions{
		ConceptType: candidate.ConceptType,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "duplicate query failed", goerr.V("concept_type", candidate.ConceptType))
	}

	var qualified []*model.SimilarityMatch
	for _, m := range matches {
		if m.Similarity >= e.threshold {
			qualified = append(qualified, m)
		}
	}

	if len(qualified) == 0 {
		return e.addNode(ctx, candidate, types.StatusActive)
	}

	// The store ranks by similarity with updated_at as tie-break, so the
	// first qualified match is the one to act against.
	best := qualified[0]
	ambiguous := len(qualified) > 1
	if ambiguous {
		logging.From(ctx).Warn("ambiguous duplicate candidates, acting on best rank",
			"best_id", best.Node.ID,
			"best_similarity", best.Similarity,
			"runner_up_id", qualified[1].Node.ID,
			"runner_up_similarity", qualified[1].Similarity,
			"qualified", len(qualified),
		)
	}

	decision, err := e.resolveAgainst(ctx, candidate, best)
	if err != nil {
		return nil, err
	}
	decision.Ambiguous = ambiguous

	logging.From(ctx).Info("memory decision applied",
		"decision", decision.Kind,
		"node_id", decision.NodeID,
		"similarity", decision.Similarity,
		"concept_type", candidate.ConceptType,
	)
	return decision, nil
}

func (e *Engine) addNode(ctx context.Context, candidate *model.Candidate, status types.NodeStatus) (*model.Decision, error) {
	node := model.NewMemoryNode(candidate.Content, candidate.Embedding, candidate.ConceptType)
	node.Status = status

	if err := e.repo.CreateNode(ctx, node); err != nil {
		return nil, goerr.Wrap(err, "failed to create memory node", goerr.V("concept_type", candidate.ConceptType))
	}

	logging.From(ctx).Info("memory decision applied",
		"decision", model.DecisionAdd,
		"node_id", node.ID,
		"status", status,
		"concept_type", candidate.ConceptType,
	)
	return &model.Decision{
		Kind:   model.DecisionAdd,
		NodeID: node.ID,
	}, nil
}

func (e *Engine) resolveAgainst(ctx context.Context, candidate *model.Candidate, match *model.SimilarityMatch) (*model.Decision, error) {
	incumbent := match.Node

	switch {
	case contradicts(incumbent.Content, candidate.Content):
		newNode := model.NewMemoryNode(candidate.Content, candidate.Embedding, candidate.ConceptType)
		if err := e.repo.Supersede(ctx, newNode, incumbent.ID); err != nil {
			return nil, goerr.Wrap(err, "failed to supersede node", goerr.V("old_id", incumbent.ID))
		}
		return &model.Decision{
			Kind:         model.DecisionSupersede,
			NodeID:       newNode.ID,
			SupersededID: incumbent.ID,
			Similarity:   match.Similarity,
		}, nil

	case refines(incumbent.Content, candidate.Content):
		incumbent.Content = candidate.Content
		incumbent.Embedding = candidate.Embedding
		incumbent.UpdatedAt = time.Now()
		if err := e.repo.UpdateNode(ctx, incumbent); err != nil {
			return nil, goerr.Wrap(err, "failed to update node", goerr.V("id", incumbent.ID))
		}
		return &model.Decision{
			Kind:       model.DecisionUpdate,
			NodeID:     incumbent.ID,
			Similarity: match.Similarity,
		}, nil

	default:
		return &model.Decision{
			Kind:       model.DecisionNoop,
			NodeID:     incumbent.ID,
			Similarity: match.Similarity,
		}, nil
	}
}
