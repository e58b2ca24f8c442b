package model

import (
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// SessionLimits bounds a think session. Zero durations disable the
// corresponding timeout.
type SessionLimits struct {
	MaxThoughts     int
	MaxDepth        int
	ThinkingTimeout time.Duration
	SessionTTL      time.Duration
}

// DefaultSessionLimits returns the limits applied when the caller and the
// tuning config specify none.
func DefaultSessionLimits() SessionLimits {
	return SessionLimits{
		MaxThoughts:     64,
		MaxDepth:        16,
		ThinkingTimeout: 5 * time.Minute,
		SessionTTL:      30 * time.Minute,
	}
}

// Validate checks that the limits are usable.
func (l SessionLimits) Validate() error {
	if l.MaxThoughts <= 0 {
		return goerr.Wrap(ErrInvalidInput, "max_thoughts must be positive", goerr.V("max_thoughts", l.MaxThoughts))
	}
	if l.MaxDepth <= 0 {
		return goerr.Wrap(ErrInvalidInput, "max_depth must be positive", goerr.V("max_depth", l.MaxDepth))
	}
	if l.ThinkingTimeout < 0 || l.SessionTTL < 0 {
		return goerr.Wrap(ErrInvalidInput, "timeouts must not be negative",
			goerr.V("thinking_timeout", l.ThinkingTimeout), goerr.V("session_ttl", l.SessionTTL))
	}
	return nil
}

// Thought is one entry in a session's reasoning DAG. Parents always precede
// their children in the arena, so cycles are structurally impossible.
type Thought struct {
	Index         int
	ParentIndices []int
	Content       string
	Depth         int
	Timestamp     time.Time
	Recalled      bool
}

// ThinkSession is an isolated scratchpad reasoning graph. It lives only in
// memory and reaches the main graph exclusively through commit or timeout
// auto-save.
type ThinkSession struct {
	ID              types.SessionID
	State           types.SessionState
	Thoughts        []Thought
	ConclusionIndex int
	Limits          SessionLimits
	CreatedAt       time.Time
	LastActivity    time.Time
}

// NewThinkSession creates an active session with no thoughts.
func NewThinkSession(limits SessionLimits) *ThinkSession {
	now := time.Now()
	return &ThinkSession{
		ID:              types.NewSessionID(),
		State:           types.SessionActive,
		ConclusionIndex: -1,
		Limits:          limits,
		CreatedAt:       now,
		LastActivity:    now,
	}
}

// AddThought appends a thought linked to the given parent indices. Root
// thoughts (no parents) have depth 0; otherwise depth is 1 + max parent
// depth. All validation happens before any mutation.
func (s *ThinkSession) AddThought(content string, parents []int, recalled bool) (*Thought, error) {
	if s.State != types.SessionActive {
		return nil, goerr.Wrap(ErrInvalidTransition, "thoughts can only be added to an active session",
			goerr.V("session_id", s.ID), goerr.V("state", s.State))
	}
	if strings.TrimSpace(content) == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "thought content is empty", goerr.V("session_id", s.ID))
	}
	if len(s.Thoughts) >= s.Limits.MaxThoughts {
		return nil, goerr.Wrap(ErrLimitExceeded, "max thoughts reached",
			goerr.V("session_id", s.ID), goerr.V("max_thoughts", s.Limits.MaxThoughts))
	}

	depth := 0
	for _, p := range parents {
		if p < 0 || p >= len(s.Thoughts) {
			return nil, goerr.Wrap(ErrInvalidInput, "parent must reference an earlier thought",
				goerr.V("session_id", s.ID), goerr.V("parent", p), goerr.V("thoughts", len(s.Thoughts)))
		}
		if d := s.Thoughts[p].Depth + 1; d > depth {
			depth = d
		}
	}
	if depth > s.Limits.MaxDepth {
		return nil, goerr.Wrap(ErrLimitExceeded, "max depth exceeded",
			goerr.V("session_id", s.ID), goerr.V("depth", depth), goerr.V("max_depth", s.Limits.MaxDepth))
	}

	now := time.Now()
	s.Thoughts = append(s.Thoughts, Thought{
		Index:         len(s.Thoughts),
		ParentIndices: append([]int(nil), parents...),
		Content:       content,
		Depth:         depth,
		Timestamp:     now,
		Recalled:      recalled,
	})
	s.LastActivity = now
	return &s.Thoughts[len(s.Thoughts)-1], nil
}

// AvailableSlots returns how many more thoughts fit before max_thoughts.
func (s *ThinkSession) AvailableSlots() int {
	return s.Limits.MaxThoughts - len(s.Thoughts)
}

// Conclude marks one thought as the session conclusion and moves the session
// to the concluding state.
func (s *ThinkSession) Conclude(index int) error {
	if s.State != types.SessionActive {
		return goerr.Wrap(ErrInvalidTransition, "conclude requires an active session",
			goerr.V("session_id", s.ID), goerr.V("state", s.State))
	}
	if len(s.Thoughts) == 0 {
		return goerr.Wrap(ErrInvalidTransition, "conclude requires at least one thought",
			goerr.V("session_id", s.ID))
	}
	if index < 0 || index >= len(s.Thoughts) {
		return goerr.Wrap(ErrInvalidInput, "conclusion index out of range",
			goerr.V("session_id", s.ID), goerr.V("index", index), goerr.V("thoughts", len(s.Thoughts)))
	}
	s.ConclusionIndex = index
	s.State = types.SessionConcluding
	s.LastActivity = time.Now()
	return nil
}

// MaxDepthUsed returns the deepest thought depth reached so far.
func (s *ThinkSession) MaxDepthUsed() int {
	depth := 0
	for _, t := range s.Thoughts {
		if t.Depth > depth {
			depth = t.Depth
		}
	}
	return depth
}

// Expired reports whether the session passed its thinking timeout (idle) or
// its absolute TTL. Terminal sessions never expire.
func (s *ThinkSession) Expired(now time.Time) bool {
	if s.State.IsTerminal() {
		return false
	}
	if s.Limits.ThinkingTimeout > 0 && now.Sub(s.LastActivity) > s.Limits.ThinkingTimeout {
		return true
	}
	if s.Limits.SessionTTL > 0 && now.Sub(s.CreatedAt) > s.Limits.SessionTTL {
		return true
	}
	return false
}

// ConsolidatedContent joins every thought oldest first into one block. Used
// by the timeout auto-save.
func (s *ThinkSession) ConsolidatedContent() string {
	parts := make([]string, len(s.Thoughts))
	for i, t := range s.Thoughts {
		parts[i] = t.Content
	}
	return strings.Join(parts, "\n")
}

// ConclusionContent returns the conclusion thought prefixed by its ancestor
// chain, oldest first. Only valid in the concluding state.
func (s *ThinkSession) ConclusionContent() (string, error) {
	if s.State != types.SessionConcluding || s.ConclusionIndex < 0 {
		return "", goerr.Wrap(ErrInvalidTransition, "no conclusion marked",
			goerr.V("session_id", s.ID), goerr.V("state", s.State))
	}

	seen := map[int]bool{s.ConclusionIndex: true}
	queue := []int{s.ConclusionIndex}
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		for _, p := range s.Thoughts[idx].ParentIndices {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}

	indices := make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = s.Thoughts[idx].Content
	}
	return strings.Join(parts, " -> "), nil
}

// SessionStatus is a read-only snapshot served by think_status.
type SessionStatus struct {
	SessionID     types.SessionID
	State         types.SessionState
	ThoughtCount  int
	MaxDepthUsed  int
	HasConclusion bool
	Elapsed       time.Duration
}

// Snapshot captures the session status at the given time.
func (s *ThinkSession) Snapshot(now time.Time) SessionStatus {
	return SessionStatus{
		SessionID:     s.ID,
		State:         s.State,
		ThoughtCount:  len(s.Thoughts),
		MaxDepthUsed:  s.MaxDepthUsed(),
		HasConclusion: s.ConclusionIndex >= 0,
		Elapsed:       now.Sub(s.CreatedAt),
	}
}
