package firestore

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"google.golang.org/api/iterator"
)

// entityDoc is the Firestore document representation of model.Entity.
// NameKey is the case-folded name used for upsert matching.
type entityDoc struct {
	ID        string    `firestore:"id"`
	Name      string    `firestore:"name"`
	NameKey   string    `firestore:"name_key"`
	MemoryIDs []string  `firestore:"memory_ids"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func toEntityDoc(e *model.Entity) *entityDoc {
	doc := &entityDoc{
		ID:        string(e.ID),
		Name:      e.Name,
		NameKey:   entityNameKey(e.Name),
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
	for _, id := range e.MemoryIDs {
		doc.MemoryIDs = append(doc.MemoryIDs, string(id))
	}
	return doc
}

func fromEntityDoc(d *entityDoc) *model.Entity {
	e := &model.Entity{
		ID:        types.EntityID(d.ID),
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, id := range d.MemoryIDs {
		e.MemoryIDs = append(e.MemoryIDs, types.MemoryID(id))
	}
	return e
}

func entityNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type entityRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newEntityRepository(client *firestore.Client) *entityRepository {
	return &entityRepository{client: client}
}

func (r *entityRepository) entities() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "memory_entities")
}

func (r *entityRepository) Upsert(ctx context.Context, name string, memoryIDs ...types.MemoryID) (*model.Entity, error) {
	key := entityNameKey(name)
	if key == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "entity name is empty")
	}

	var result *model.Entity
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		iter := tx.Documents(r.entities().Where("name_key", "==", key).Limit(1))
		doc, err := iter.Next()
		if err != nil && err != iterator.Done {
			return err
		}

		if err == iterator.Done {
			entity := model.NewEntity(strings.TrimSpace(name), memoryIDs...)
			result = entity
			return tx.Set(r.entities().Doc(string(entity.ID)), toEntityDoc(entity))
		}

		var d entityDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal entity")
		}
		entity := fromEntityDoc(&d)
		for _, memID := range memoryIDs {
			entity.Link(memID)
		}
		entity.UpdatedAt = time.Now().UTC()
		result = entity
		return tx.Set(doc.Ref, toEntityDoc(entity))
	})
	if err != nil {
		return nil, mapError(err, "failed to upsert entity", goerr.V("name", name))
	}
	return result, nil
}

func (r *entityRepository) Get(ctx context.Context, id types.EntityID) (*model.Entity, error) {
	doc, err := r.entities().Doc(string(id)).Get(ctx)
	if err != nil {
		return nil, mapError(err, "failed to get entity", goerr.V("id", id))
	}

	var d entityDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal entity", goerr.V("id", id))
	}
	return fromEntityDoc(&d), nil
}

func (r *entityRepository) ListByMemoryIDs(ctx context.Context, ids []types.MemoryID) ([]*model.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = string(id)
	}

	collected := make(map[types.EntityID]*model.Entity)
	for i := 0; i < len(idStrs); i += queryChunkSize {
		end := i + queryChunkSize
		if end > len(idStrs) {
			end = len(idStrs)
		}
		batch := idStrs[i:end]

		iter := r.entities().Where("memory_ids", "array-contains-any", batch).Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, mapError(err, "failed to iterate entities")
			}

			var d entityDoc
			if err := doc.DataTo(&d); err != nil {
				iter.Stop()
				return nil, goerr.Wrap(err, "failed to unmarshal entity")
			}
			entity := fromEntityDoc(&d)
			collected[entity.ID] = entity
		}
		iter.Stop()
	}

	result := make([]*model.Entity, 0, len(collected))
	for _, entity := range collected {
		result = append(result, entity)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *entityRepository) count(ctx context.Context) (int, error) {
	iter := r.entities().Select("id").Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, mapError(err, "failed to count entities")
		}
		count++
	}
	return count, nil
}
