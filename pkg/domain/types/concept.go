package types

// ConceptType classifies a memory node within the ontology
type ConceptType string

const (
	ConceptSkill       ConceptType = "skill"
	ConceptPreference  ConceptType = "preference"
	ConceptGoal        ConceptType = "goal"
	ConceptFact        ConceptType = "fact"
	ConceptOpinion     ConceptType = "opinion"
	ConceptExperience  ConceptType = "experience"
	ConceptAchievement ConceptType = "achievement"
)

// AllConceptTypes returns all valid concept types
func AllConceptTypes() []ConceptType {
	return []ConceptType{
		ConceptSkill,
		ConceptPreference,
		ConceptGoal,
		ConceptFact,
		ConceptOpinion,
		ConceptExperience,
		ConceptAchievement,
	}
}

// IsValid checks if the concept type is one of the enumerated set
func (c ConceptType) IsValid() bool {
	switch c {
	case ConceptSkill,
		ConceptPreference,
		ConceptGoal,
		ConceptFact,
		ConceptOpinion,
		ConceptExperience,
		ConceptAchievement:
		return true
	default:
		return false
	}
}

// Normalize returns the concept type, treating empty as ConceptFact
func (c ConceptType) Normalize() ConceptType {
	if c == "" {
		return ConceptFact
	}
	return c
}

// String returns the string representation of the concept type
func (c ConceptType) String() string {
	return string(c)
}
