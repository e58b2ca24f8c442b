package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type entityRepository struct {
	mu       sync.RWMutex
	entities map[types.EntityID]*model.Entity
	byName   map[string]types.EntityID
}

func newEntityRepository() *entityRepository {
	return &entityRepository{
		entities: make(map[types.EntityID]*model.Entity),
		byName:   make(map[string]types.EntityID),
	}
}

func copyEntity(e *model.Entity) *model.Entity {
	copied := &model.Entity{
		ID:        e.ID,
		Name:      e.Name,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.MemoryIDs != nil {
		copied.MemoryIDs = make([]types.MemoryID, len(e.MemoryIDs))
		copy(copied.MemoryIDs, e.MemoryIDs)
	}
	return copied
}

func entityNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *entityRepository) Upsert(ctx context.Context, name string, memoryIDs ...types.MemoryID) (*model.Entity, error) {
	key := entityNameKey(name)
	if key == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "entity name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.byName[key]; exists {
		entity := r.entities[id]
		for _, memID := range memoryIDs {
			entity.Link(memID)
		}
		entity.UpdatedAt = time.Now().UTC()
		return copyEntity(entity), nil
	}

	entity := model.NewEntity(strings.TrimSpace(name), memoryIDs...)
	r.entities[entity.ID] = entity
	r.byName[key] = entity.ID
	return copyEntity(entity), nil
}

func (r *entityRepository) Get(ctx context.Context, id types.EntityID) (*model.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, exists := r.entities[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNodeNotFound, "entity not found", goerr.V("id", id))
	}
	return copyEntity(entity), nil
}

func (r *entityRepository) ListByMemoryIDs(ctx context.Context, ids []types.MemoryID) ([]*model.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[types.MemoryID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var result []*model.Entity
	for _, entity := range r.entities {
		for _, memID := range entity.MemoryIDs {
			if wanted[memID] {
				result = append(result, copyEntity(entity))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *entityRepository) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
