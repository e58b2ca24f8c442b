package usecase

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/think"
)

// StartThink opens a new reasoning session. A nil limits pointer applies the
// configured defaults.
func (uc *UseCases) StartThink(ctx context.Context, limits *model.SessionLimits) (*model.ThinkSession, error) {
	return uc.think.Start(ctx, limits)
}

// AddThought appends a thought to an active session.
func (uc *UseCases) AddThought(ctx context.Context, id types.SessionID, content string, parents []int) (*think.AddResult, error) {
	return uc.think.Add(ctx, id, content, parents)
}

// RecallIntoSession searches main memory and attaches the hits as recalled
// thoughts.
func (uc *UseCases) RecallIntoSession(ctx context.Context, id types.SessionID, query string, mode types.SearchMode) (*think.RecallResult, error) {
	return uc.think.Recall(ctx, id, query, mode)
}

// ConcludeThink marks one thought as the session conclusion.
func (uc *UseCases) ConcludeThink(ctx context.Context, id types.SessionID, index int) (int, error) {
	return uc.think.Conclude(ctx, id, index)
}

// CommitThink persists the conclusion through the decision engine and
// destroys the session.
func (uc *UseCases) CommitThink(ctx context.Context, id types.SessionID, conceptType types.ConceptType) (*think.CommitResult, error) {
	return uc.think.Commit(ctx, id, conceptType)
}

// DiscardThink drops a session without persistence.
func (uc *UseCases) DiscardThink(ctx context.Context, id types.SessionID) (int, error) {
	return uc.think.Discard(ctx, id)
}

// ThinkStatus returns a session snapshot.
func (uc *UseCases) ThinkStatus(ctx context.Context, id types.SessionID) (*model.SessionStatus, error) {
	return uc.think.Status(ctx, id)
}
