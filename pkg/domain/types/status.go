package types

// NodeStatus represents the lifecycle status of a memory node
type NodeStatus string

const (
	StatusActive     NodeStatus = "active"
	StatusSuperseded NodeStatus = "superseded"
	StatusIncomplete NodeStatus = "incomplete"
)

// AllNodeStatuses returns all valid node statuses
func AllNodeStatuses() []NodeStatus {
	return []NodeStatus{
		StatusActive,
		StatusSuperseded,
		StatusIncomplete,
	}
}

// IsValid checks if the node status is valid
func (s NodeStatus) IsValid() bool {
	switch s {
	case StatusActive,
		StatusSuperseded,
		StatusIncomplete:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as StatusActive
func (s NodeStatus) Normalize() NodeStatus {
	if s == "" {
		return StatusActive
	}
	return s
}

// String returns the string representation of the node status
func (s NodeStatus) String() string {
	return string(s)
}
