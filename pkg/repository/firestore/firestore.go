package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is the persistent backend. Nodes, edges and entities live in
// three flat collections so composite and vector indexes can cover every
// query shape.
type Firestore struct {
	client *firestore.Client
	graph  *graphRepository
	entity *entityRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prepends a prefix to every collection name, for
// projects shared between deployments.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.graph.collectionPrefix = prefix
		f.entity.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client: client,
		graph:  newGraphRepository(client),
		entity: newEntityRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Graph() interfaces.GraphRepository {
	return f.graph
}

func (f *Firestore) Entity() interfaces.EntityRepository {
	return f.entity
}

func (f *Firestore) Stats(ctx context.Context) (*model.GraphStats, error) {
	stats := &model.GraphStats{
		NodesByStatus: make(map[types.NodeStatus]int),
		EdgesByKind:   make(map[types.RelationKind]int),
	}

	nodeIter := f.graph.nodes().Select("status").Documents(ctx)
	defer nodeIter.Stop()
	for {
		doc, err := nodeIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err, "failed to iterate nodes for stats")
		}
		if v, err := doc.DataAt("status"); err == nil {
			if s, ok := v.(string); ok {
				stats.NodesByStatus[types.NodeStatus(s)]++
			}
		}
	}

	edgeIter := f.graph.edges().Select("kind").Documents(ctx)
	defer edgeIter.Stop()
	for {
		doc, err := edgeIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err, "failed to iterate edges for stats")
		}
		if v, err := doc.DataAt("kind"); err == nil {
			if k, ok := v.(string); ok {
				stats.EdgesByKind[types.RelationKind(k)]++
			}
		}
	}

	count, err := f.entity.count(ctx)
	if err != nil {
		return nil, err
	}
	stats.EntityCount = count

	return stats, nil
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// queryChunkSize is the Firestore limit on disjunctions in a single "in" or
// "array-contains-any" filter.
const queryChunkSize = 30

// mapError converts a Firestore error into the domain error taxonomy.
func mapError(err error, msg string, vals ...goerr.Option) error {
	switch status.Code(err) {
	case codes.NotFound:
		vals = append(vals, goerr.V("cause", err.Error()))
		return goerr.Wrap(model.ErrNodeNotFound, msg, vals...)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		vals = append(vals, goerr.V("cause", err.Error()))
		return goerr.Wrap(model.ErrStoreUnavailable, msg, vals...)
	default:
		return goerr.Wrap(err, msg, vals...)
	}
}
