package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Repository defines the interface for data persistence
type Repository interface {
	Graph() GraphRepository
	Entity() EntityRepository

	// Stats summarizes stored nodes, edges and entities.
	Stats(ctx context.Context) (*model.GraphStats, error)

	Close() error
}
