package types

import (
	"strings"

	"github.com/google/uuid"
)

// MemoryID identifies a persisted memory node
type MemoryID string

// SessionID identifies an ephemeral think session
type SessionID string

// RelationID identifies a directed edge between nodes
type RelationID string

// EntityID identifies an extracted named entity
type EntityID string

// shortID returns the first 12 hex characters of a fresh UUID. IDs stay
// compact enough to embed in LLM tool output without wasting tokens.
func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// NewMemoryID generates a new unique memory node ID
func NewMemoryID() MemoryID {
	return MemoryID("mem_" + shortID())
}

// NewSessionID generates a new unique think session ID
func NewSessionID() SessionID {
	return SessionID("ses_" + shortID())
}

// NewRelationID generates a new unique relation ID
func NewRelationID() RelationID {
	return RelationID("rel_" + shortID())
}

// NewEntityID generates a new unique entity ID
func NewEntityID() EntityID {
	return EntityID("ent_" + shortID())
}

// String returns the string representation of the memory ID
func (i MemoryID) String() string { return string(i) }

// String returns the string representation of the session ID
func (i SessionID) String() string { return string(i) }

// String returns the string representation of the relation ID
func (i RelationID) String() string { return string(i) }

// String returns the string representation of the entity ID
func (i EntityID) String() string { return string(i) }
