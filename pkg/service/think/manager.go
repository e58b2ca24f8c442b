package think

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/decision"
	"github.com/secmon-lab/mnemosyne/pkg/service/search"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Embedder turns text into a query/candidate embedding. Implemented by the
// extraction service in production and by fakes in tests.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Manager owns every live think session. Sessions exist only in process
// memory; they reach the main graph exclusively through commit or timeout
// auto-save, both of which funnel through the decision engine.
//
// Expiry is checked lazily at the start of every operation (status reads
// included), so no session is ever operated on past its timeout. A periodic
// SweepExpired call covers sessions that receive no traffic at all.
type Manager struct {
	mu       sync.Mutex
	sessions map[types.SessionID]*model.ThinkSession

	decision *decision.Engine
	search   *search.Engine
	embedder Embedder
	defaults model.SessionLimits
	now      func() time.Time
}

// Option is a functional option for Manager configuration
type Option func(*Manager)

// WithDefaultLimits overrides the limits applied when think_start gets none.
func WithDefaultLimits(limits model.SessionLimits) Option {
	return func(m *Manager) {
		m.defaults = limits
	}
}

// WithClock overrides the time source. Tests use this to trigger timeouts
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a session manager that recalls through the given search engine
// and persists through the given decision engine.
func New(decisionEngine *decision.Engine, searchEngine *search.Engine, embedder Embedder, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[types.SessionID]*model.ThinkSession),
		decision: decisionEngine,
		search:   searchEngine,
		embedder: embedder,
		defaults: model.DefaultSessionLimits(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddResult reports the outcome of think_add.
type AddResult struct {
	Index        int
	ThoughtCount int
	Depth        int
}

// RecallResult reports the outcome of think_recall.
type RecallResult struct {
	Indices       []int
	RecalledCount int
}

// CommitResult reports the outcome of think_commit.
type CommitResult struct {
	MemoryID          types.MemoryID
	Decision          model.DecisionKind
	ThoughtsProcessed int
}

// TimeoutResult reports a timeout auto-save.
type TimeoutResult struct {
	SessionID types.SessionID
	MemoryID  types.MemoryID
}

// Start creates a new session. A nil limits pointer applies the manager
// defaults; zero fields in a provided limits struct fall back per-field.
func (m *Manager) Start(ctx context.Context, limits *model.SessionLimits) (*model.ThinkSession, error) {
	effective := m.defaults
	if limits != nil {
		if limits.MaxThoughts > 0 {
			effective.MaxThoughts = limits.MaxThoughts
		}
		if limits.MaxDepth > 0 {
			effective.MaxDepth = limits.MaxDepth
		}
		if limits.ThinkingTimeout > 0 {
			effective.ThinkingTimeout = limits.ThinkingTimeout
		}
		if limits.SessionTTL > 0 {
			effective.SessionTTL = limits.SessionTTL
		}
	}
	if err := effective.Validate(); err != nil {
		return nil, err
	}

	session := model.NewThinkSession(effective)
	now := m.now()
	session.CreatedAt = now
	session.LastActivity = now

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	logging.From(ctx).Info("think session started",
		"session_id", session.ID,
		"max_thoughts", effective.MaxThoughts,
		"max_depth", effective.MaxDepth,
	)
	return session, nil
}

// Add appends an authored thought linked to the given parent indices.
func (m *Manager) Add(ctx context.Context, id types.SessionID, content string, parents []int) (*AddResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.liveSession(ctx, id)
	if err != nil {
		return nil, err
	}

	thought, err := session.AddThought(content, parents, false)
	if err != nil {
		return nil, err
	}
	session.LastActivity = m.now()

	return &AddResult{
		Index:        thought.Index,
		ThoughtCount: len(session.Thoughts),
		Depth:        thought.Depth,
	}, nil
}

// Recall queries main memory through the search engine and attaches the
// results as recalled thoughts. Recalled thoughts are annotated with their
// source node, never merged into authored content, and respect the session's
// thought budget.
func (m *Manager) Recall(ctx context.Context, id types.SessionID, query string, mode types.SearchMode) (*RecallResult, error) {
	if query == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "recall query is empty", goerr.V("session_id", id))
	}

	// The embedding and search run outside the session lock: reads must not
	// serialize behind other sessions' operations.
	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed recall query", goerr.V("session_id", id))
	}
	hits, err := m.search.Search(ctx, embedding, mode, "")
	if err != nil {
		return nil, goerr.Wrap(err, "recall search failed", goerr.V("session_id", id))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.liveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != types.SessionActive {
		return nil, goerr.Wrap(model.ErrInvalidTransition, "recall requires an active session",
			goerr.V("session_id", id), goerr.V("state", session.State))
	}

	result := &RecallResult{}
	for _, hit := range hits {
		if session.AvailableSlots() == 0 {
			break
		}
		content := fmt.Sprintf("[recall %s] %s", hit.Node.ID, hit.Node.Content)
		thought, err := session.AddThought(content, nil, true)
		if err != nil {
			return nil, err
		}
		result.Indices = append(result.Indices, thought.Index)
		result.RecalledCount++
	}
	session.LastActivity = m.now()

	return result, nil
}

// Conclude marks one thought as the session conclusion.
func (m *Manager) Conclude(ctx context.Context, id types.SessionID, index int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.liveSession(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := session.Conclude(index); err != nil {
		return 0, err
	}
	session.LastActivity = m.now()
	return index, nil
}

// Commit consolidates the conclusion and its ancestor chain into one
// candidate, routes it through the decision engine, and destroys the
// session. The returned memory ID is whatever the decision engine resolved:
// for a duplicate conclusion that is the pre-existing node.
func (m *Manager) Commit(ctx context.Context, id types.SessionID, conceptType types.ConceptType) (*CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.liveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != types.SessionConcluding {
		return nil, goerr.Wrap(model.ErrInvalidTransition, "commit requires a concluded session",
			goerr.V("session_id", id), goerr.V("state", session.State))
	}

	content, err := session.ConclusionContent()
	if err != nil {
		return nil, err
	}

	embedding, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed commit content", goerr.V("session_id", id))
	}

	dec, err := m.decision.ClassifyAndApply(ctx, &model.Candidate{
		Content:     content,
		Embedding:   embedding,
		ConceptType: conceptType.Normalize(),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "commit persistence failed", goerr.V("session_id", id))
	}

	session.State = types.SessionCommitted
	delete(m.sessions, id)
	m.search.InvalidateCache()

	logging.From(ctx).Info("think session committed",
		"session_id", id,
		"memory_id", dec.NodeID,
		"decision", dec.Kind,
		"thoughts", len(session.Thoughts),
	)
	return &CommitResult{
		MemoryID:          dec.NodeID,
		Decision:          dec.Kind,
		ThoughtsProcessed: len(session.Thoughts),
	}, nil
}

// Discard drops the session and all thoughts without persistence. Discarding
// an unknown or already-terminal session reports SessionNotFound.
func (m *Manager) Discard(ctx context.Context, id types.SessionID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.liveSession(ctx, id)
	if err != nil {
		return 0, err
	}

	count := len(session.Thoughts)
	session.State = types.SessionDiscarded
	delete(m.sessions, id)

	logging.From(ctx).Info("think session discarded",
		"session_id", id,
		"thoughts_dropped", count,
	)
	return count, nil
}

// Status returns a read-only snapshot. Like every other operation it first
// settles an overdue timeout, so a status read on an expired session reports
// SessionNotFound after the auto-save lands.
func (m *Manager) Status(ctx context.Context, id types.SessionID) (*model.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.liveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	snapshot := session.Snapshot(m.now())
	return &snapshot, nil
}

// SweepExpired settles every overdue session. Sessions whose auto-save fails
// stay live and are retried on the next sweep; the first error is returned
// after the whole sweep completes.
func (m *Manager) SweepExpired(ctx context.Context) ([]TimeoutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []TimeoutResult
	var firstErr error

	now := m.now()
	for id, session := range m.sessions {
		if !session.Expired(now) {
			continue
		}
		memoryID, err := m.settleTimeout(ctx, session)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(m.sessions, id)
		results = append(results, TimeoutResult{SessionID: id, MemoryID: memoryID})
	}

	if len(results) > 0 {
		logging.From(ctx).Info("expired think sessions recovered", "count", len(results))
	}
	return results, firstErr
}

// liveSession resolves a session, settling an overdue timeout first. Callers
// must hold m.mu.
func (m *Manager) liveSession(ctx context.Context, id types.SessionID) (*model.ThinkSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "unknown session", goerr.V("session_id", id))
	}

	if session.Expired(m.now()) {
		if _, err := m.settleTimeout(ctx, session); err != nil {
			// The auto-save failed: the session stays live so no thought is
			// lost, but the triggering operation must not proceed past the
			// timeout either.
			return nil, goerr.Wrap(err, "timeout auto-save failed, session retained",
				goerr.V("session_id", id))
		}
		delete(m.sessions, id)
		return nil, goerr.Wrap(model.ErrSessionNotFound, "session timed out",
			goerr.V("session_id", id))
	}

	return session, nil
}

// settleTimeout persists the session's thoughts as one incomplete-marked
// node. The state flips to timed_out only after the write is acknowledged.
func (m *Manager) settleTimeout(ctx context.Context, session *model.ThinkSession) (types.MemoryID, error) {
	if len(session.Thoughts) == 0 {
		session.State = types.SessionTimedOut
		logging.From(ctx).Info("empty think session expired", "session_id", session.ID)
		return "", nil
	}

	content := model.IncompleteMarker + " " + session.ConsolidatedContent()
	embedding, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed timeout content", goerr.V("session_id", session.ID))
	}

	dec, err := m.decision.ClassifyAndApply(ctx, &model.Candidate{
		Content:     content,
		Embedding:   embedding,
		ConceptType: types.ConceptExperience,
		Incomplete:  true,
	})
	if err != nil {
		return "", err
	}

	session.State = types.SessionTimedOut
	m.search.InvalidateCache()

	logging.From(ctx).Info("think session timed out, thoughts auto-saved",
		"session_id", session.ID,
		"memory_id", dec.NodeID,
		"thoughts", len(session.Thoughts),
	)
	return dec.NodeID, nil
}
