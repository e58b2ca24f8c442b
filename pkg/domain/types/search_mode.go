package types

import "time"

// SearchMode selects the recall tier: how far back in time to look and how
// many relation hops to expand from the similarity seeds.
type SearchMode string

const (
	SearchModeRecent     SearchMode = "recent"
	SearchModeContextual SearchMode = "contextual"
	SearchModeDeep       SearchMode = "deep"
	SearchModeFull       SearchMode = "full"
)

// AllSearchModes returns all valid search modes
func AllSearchModes() []SearchMode {
	return []SearchMode{
		SearchModeRecent,
		SearchModeContextual,
		SearchModeDeep,
		SearchModeFull,
	}
}

// IsValid checks if the search mode is valid
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeRecent,
		SearchModeContextual,
		SearchModeDeep,
		SearchModeFull:
		return true
	default:
		return false
	}
}

// Normalize returns the mode, treating empty as SearchModeContextual
func (m SearchMode) Normalize() SearchMode {
	if m == "" {
		return SearchModeContextual
	}
	return m
}

// Window returns the recency window for the mode. Zero means unbounded.
func (m SearchMode) Window() time.Duration {
	switch m {
	case SearchModeRecent:
		return 4 * time.Hour
	case SearchModeContextual:
		return 30 * 24 * time.Hour
	case SearchModeDeep:
		return 90 * 24 * time.Hour
	default:
		return 0
	}
}

// MaxDepth returns the graph expansion bound in hops for the mode.
func (m SearchMode) MaxDepth() int {
	switch m {
	case SearchModeRecent:
		return 1
	case SearchModeContextual:
		return 2
	case SearchModeDeep:
		return 3
	default:
		return 4
	}
}

// IncludesSuperseded reports whether superseded nodes appear in results.
// Only the full mode serves the historical-audit view.
func (m SearchMode) IncludesSuperseded() bool {
	return m == SearchModeFull
}

// DefaultSeedLimit returns how many similarity seeds the mode starts from
// when the tuning config does not override it.
func (m SearchMode) DefaultSeedLimit() int {
	switch m {
	case SearchModeRecent:
		return 5
	case SearchModeContextual:
		return 10
	case SearchModeDeep:
		return 15
	default:
		return 20
	}
}

// DefaultMaxResults returns the result cap for the mode when the tuning
// config does not override it.
func (m SearchMode) DefaultMaxResults() int {
	switch m {
	case SearchModeRecent:
		return 10
	case SearchModeContextual:
		return 20
	case SearchModeDeep:
		return 50
	default:
		return 100
	}
}

// String returns the string representation of the search mode
func (m SearchMode) String() string {
	return string(m)
}
