package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Candidate is an incoming fact awaiting classification against the graph.
type Candidate struct {
	Content     string
	Embedding   []float32
	ConceptType types.ConceptType

	// SubjectKey serializes concurrent writes about the same logical subject.
	// Empty falls back to the concept type.
	SubjectKey string

	// Incomplete marks timeout-recovered think session content. Such
	// candidates are always added as new incomplete nodes and never merge
	// into or supersede existing memory.
	Incomplete bool
}

// Validate checks the structural shape of the candidate.
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return goerr.Wrap(ErrInvalidInput, "candidate content is empty")
	}
	if !c.ConceptType.IsValid() {
		return goerr.Wrap(ErrInvalidInput, "unknown concept type", goerr.V("concept_type", c.ConceptType))
	}
	if len(c.Embedding) != EmbeddingDimension {
		return goerr.Wrap(ErrInvalidInput, "embedding dimension mismatch",
			goerr.V("got", len(c.Embedding)), goerr.V("want", EmbeddingDimension))
	}
	return nil
}

// LockKey returns the serialization key for graph writes about this subject.
func (c *Candidate) LockKey() string {
	if c.SubjectKey != "" {
		return c.SubjectKey
	}
	return c.ConceptType.String()
}

// DecisionKind is the classification outcome for a candidate.
type DecisionKind string

const (
	DecisionAdd       DecisionKind = "ADD"
	DecisionUpdate    DecisionKind = "UPDATE"
	DecisionSupersede DecisionKind = "SUPERSEDE"
	DecisionNoop      DecisionKind = "NOOP"
)

// String returns the string representation of the decision kind
func (k DecisionKind) String() string {
	return string(k)
}

// Decision is the applied outcome of classify-and-apply. NodeID always names
// the node the caller should reference afterwards: the created node for ADD
// and SUPERSEDE, the merged node for UPDATE, the surviving node for NOOP.
type Decision struct {
	Kind   DecisionKind
	NodeID types.MemoryID

	// SupersededID is set only for SUPERSEDE.
	SupersededID types.MemoryID

	// Similarity to the matched incumbent. Zero for ADD.
	Similarity float64

	// Ambiguous reports that more than one node cleared the duplicate
	// threshold and the rank tie-break was exercised.
	Ambiguous bool
}
