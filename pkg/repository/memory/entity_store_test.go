package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
)

func TestEntityUpsertMergesByName(t *testing.T) {
	repo := memory.New().Entity()
	ctx := context.Background()

	a, b := types.NewMemoryID(), types.NewMemoryID()

	first, err := repo.Upsert(ctx, "Acme Corp", a)
	gt.NoError(t, err).Required()
	gt.Value(t, first.Name).Equal("Acme Corp")
	gt.Array(t, first.MemoryIDs).Length(1)

	// Matching is case-insensitive; links merge without duplicates.
	second, err := repo.Upsert(ctx, "  acme corp ", a, b)
	gt.NoError(t, err).Required()
	gt.Value(t, second.ID).Equal(first.ID)
	gt.Array(t, second.MemoryIDs).Length(2)

	_, err = repo.Upsert(ctx, "   ")
	gt.Error(t, err).Is(model.ErrInvalidInput)
}

func TestEntityGet(t *testing.T) {
	repo := memory.New().Entity()
	ctx := context.Background()

	created, err := repo.Upsert(ctx, "Initech", types.NewMemoryID())
	gt.NoError(t, err).Required()

	got, err := repo.Get(ctx, created.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Name).Equal("Initech")

	_, err = repo.Get(ctx, "ent_missing")
	gt.Value(t, err).NotNil()
}

func TestEntityListByMemoryIDs(t *testing.T) {
	repo := memory.New().Entity()
	ctx := context.Background()

	a, b, c := types.NewMemoryID(), types.NewMemoryID(), types.NewMemoryID()

	_, err := repo.Upsert(ctx, "Beta", a)
	gt.NoError(t, err).Required()
	_, err = repo.Upsert(ctx, "Alpha", a, b)
	gt.NoError(t, err).Required()
	_, err = repo.Upsert(ctx, "Gamma", c)
	gt.NoError(t, err).Required()

	entities, err := repo.ListByMemoryIDs(ctx, []types.MemoryID{a, b})
	gt.NoError(t, err).Required()
	gt.Array(t, entities).Length(2).Required()
	// Sorted by name.
	gt.Value(t, entities[0].Name).Equal("Alpha")
	gt.Value(t, entities[1].Name).Equal("Beta")

	none, err := repo.ListByMemoryIDs(ctx, []types.MemoryID{types.NewMemoryID()})
	gt.NoError(t, err).Required()
	gt.Array(t, none).Length(0)
}
