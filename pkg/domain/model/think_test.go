package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

func testLimits() model.SessionLimits {
	return model.SessionLimits{
		MaxThoughts:     8,
		MaxDepth:        4,
		ThinkingTimeout: time.Minute,
		SessionTTL:      10 * time.Minute,
	}
}

func TestAddThought_DepthFollowsDeepestParent(t *testing.T) {
	s := model.NewThinkSession(testLimits())

	root, err := s.AddThought("root", nil, false)
	gt.NoError(t, err).Required()
	gt.Value(t, root.Index).Equal(0)
	gt.Value(t, root.Depth).Equal(0)

	a, err := s.AddThought("branch a", []int{0}, false)
	gt.NoError(t, err).Required()
	gt.Value(t, a.Depth).Equal(1)

	b, err := s.AddThought("branch b", []int{0}, false)
	gt.NoError(t, err).Required()
	gt.Value(t, b.Depth).Equal(1)

	deep, err := s.AddThought("deeper", []int{1}, false)
	gt.NoError(t, err).Required()

	// Joining a depth-2 and a depth-1 parent lands at depth 3.
	join, err := s.AddThought("join", []int{deep.Index, b.Index}, false)
	gt.NoError(t, err).Required()
	gt.Value(t, join.Depth).Equal(3)
	gt.Value(t, s.MaxDepthUsed()).Equal(3)
}

func TestAddThought_ValidationPrecedesMutation(t *testing.T) {
	s := model.NewThinkSession(testLimits())

	_, err := s.AddThought("   ", nil, false)
	gt.Error(t, err).Is(model.ErrInvalidInput)

	_, err = s.AddThought("forward reference", []int{3}, false)
	gt.Error(t, err).Is(model.ErrInvalidInput)

	gt.Array(t, s.Thoughts).Length(0)
}

func TestAddThought_Limits(t *testing.T) {
	limits := testLimits()
	limits.MaxThoughts = 2
	limits.MaxDepth = 1
	s := model.NewThinkSession(limits)

	_, err := s.AddThought("first", nil, false)
	gt.NoError(t, err).Required()
	gt.Value(t, s.AvailableSlots()).Equal(1)

	_, err = s.AddThought("second", []int{0}, false)
	gt.NoError(t, err).Required()

	_, err = s.AddThought("third", nil, false)
	gt.Error(t, err).Is(model.ErrLimitExceeded)
}

func TestConcludeAndConclusionContent(t *testing.T) {
	s := model.NewThinkSession(testLimits())

	_, err := s.AddThought("latency went up", nil, false)
	gt.NoError(t, err).Required()
	_, err = s.AddThought("unrelated aside", nil, false)
	gt.NoError(t, err).Required()
	_, err = s.AddThought("cache was cold", []int{0}, false)
	gt.NoError(t, err).Required()
	_, err = s.AddThought("deploy flushed the cache", []int{2}, false)
	gt.NoError(t, err).Required()

	gt.NoError(t, s.Conclude(3)).Required()
	gt.Value(t, s.State).Equal(types.SessionConcluding)

	content, err := s.ConclusionContent()
	gt.NoError(t, err).Required()
	// Only the ancestor chain of the conclusion appears; the aside does not.
	gt.Value(t, content).Equal("latency went up -> cache was cold -> deploy flushed the cache")

	// Concluding again is rejected once the state moved on.
	gt.Error(t, s.Conclude(0)).Is(model.ErrInvalidTransition)
}

func TestConclude_Validation(t *testing.T) {
	s := model.NewThinkSession(testLimits())
	gt.Error(t, s.Conclude(0)).Is(model.ErrInvalidTransition)

	_, err := s.AddThought("only thought", nil, false)
	gt.NoError(t, err).Required()
	gt.Error(t, s.Conclude(5)).Is(model.ErrInvalidInput)

	_, err = s.ConclusionContent()
	gt.Error(t, err).Is(model.ErrInvalidTransition)
}

func TestExpired(t *testing.T) {
	s := model.NewThinkSession(testLimits())
	now := s.CreatedAt

	gt.Bool(t, s.Expired(now.Add(30*time.Second))).False()
	gt.Bool(t, s.Expired(now.Add(61*time.Second))).True()

	// Activity pushes the idle deadline forward, TTL stays absolute.
	s.LastActivity = now.Add(9 * time.Minute)
	gt.Bool(t, s.Expired(now.Add(9*time.Minute+30*time.Second))).False()
	gt.Bool(t, s.Expired(now.Add(11*time.Minute))).True()

	s.State = types.SessionCommitted
	gt.Bool(t, s.Expired(now.Add(time.Hour))).False()
}

func TestConsolidatedContent(t *testing.T) {
	s := model.NewThinkSession(testLimits())
	_, err := s.AddThought("one", nil, false)
	gt.NoError(t, err).Required()
	_, err = s.AddThought("two", []int{0}, true)
	gt.NoError(t, err).Required()

	gt.Value(t, s.ConsolidatedContent()).Equal("one\ntwo")
}

func TestSnapshot(t *testing.T) {
	s := model.NewThinkSession(testLimits())
	_, err := s.AddThought("root", nil, false)
	gt.NoError(t, err).Required()
	_, err = s.AddThought("child", []int{0}, false)
	gt.NoError(t, err).Required()

	status := s.Snapshot(s.CreatedAt.Add(42 * time.Second))
	gt.Value(t, status.SessionID).Equal(s.ID)
	gt.Value(t, status.State).Equal(types.SessionActive)
	gt.Value(t, status.ThoughtCount).Equal(2)
	gt.Value(t, status.MaxDepthUsed).Equal(1)
	gt.Bool(t, status.HasConclusion).False()
	gt.Value(t, status.Elapsed).Equal(42 * time.Second)
}

func TestSessionLimitsValidate(t *testing.T) {
	gt.NoError(t, model.DefaultSessionLimits().Validate())

	bad := testLimits()
	bad.MaxThoughts = 0
	gt.Error(t, bad.Validate()).Is(model.ErrInvalidInput)

	bad = testLimits()
	bad.ThinkingTimeout = -time.Second
	gt.Error(t, bad.Validate()).Is(model.ErrInvalidInput)
}
