package memory

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-memory backend used in tests and local development. All
// state is lost on process exit.
type Memory struct {
	graph  *graphRepository
	entity *entityRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		graph:  newGraphRepository(),
		entity: newEntityRepository(),
	}
}

func (m *Memory) Graph() interfaces.GraphRepository {
	return m.graph
}

func (m *Memory) Entity() interfaces.EntityRepository {
	return m.entity
}

func (m *Memory) Stats(ctx context.Context) (*model.GraphStats, error) {
	m.graph.mu.RLock()
	defer m.graph.mu.RUnlock()

	stats := &model.GraphStats{
		NodesByStatus: make(map[types.NodeStatus]int),
		EdgesByKind:   make(map[types.RelationKind]int),
	}
	for _, node := range m.graph.nodes {
		stats.NodesByStatus[node.Status]++
	}
	for _, edge := range m.graph.edges {
		stats.EdgesByKind[edge.Kind]++
	}
	stats.EntityCount = m.entity.count()
	return stats, nil
}

func (m *Memory) Close() error {
	return nil
}
