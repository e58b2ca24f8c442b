package types

// RelationKind represents the type of a directed edge between memory nodes
type RelationKind string

const (
	RelationImplies     RelationKind = "IMPLIES"
	RelationBecause     RelationKind = "BECAUSE"
	RelationContradicts RelationKind = "CONTRADICTS"
	RelationSupersedes  RelationKind = "SUPERSEDES"
	RelationRelatesTo   RelationKind = "RELATES_TO"
)

// AllRelationKinds returns all valid relation kinds
func AllRelationKinds() []RelationKind {
	return []RelationKind{
		RelationImplies,
		RelationBecause,
		RelationContradicts,
		RelationSupersedes,
		RelationRelatesTo,
	}
}

// CausalRelationKinds returns the kinds traversed by reasoning chain queries
func CausalRelationKinds() []RelationKind {
	return []RelationKind{
		RelationImplies,
		RelationBecause,
		RelationContradicts,
	}
}

// IsValid checks if the relation kind is valid
func (k RelationKind) IsValid() bool {
	switch k {
	case RelationImplies,
		RelationBecause,
		RelationContradicts,
		RelationSupersedes,
		RelationRelatesTo:
		return true
	default:
		return false
	}
}

// IsCausal reports whether the kind participates in reasoning chains
func (k RelationKind) IsCausal() bool {
	switch k {
	case RelationImplies, RelationBecause, RelationContradicts:
		return true
	default:
		return false
	}
}

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	return string(k)
}
