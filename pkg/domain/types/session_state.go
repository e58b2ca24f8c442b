package types

// SessionState represents the lifecycle state of a think session
type SessionState string

const (
	SessionActive     SessionState = "active"
	SessionConcluding SessionState = "concluding"
	SessionCommitted  SessionState = "committed"
	SessionDiscarded  SessionState = "discarded"
	SessionTimedOut   SessionState = "timed_out"
)

// IsValid checks if the session state is valid
func (s SessionState) IsValid() bool {
	switch s {
	case SessionActive,
		SessionConcluding,
		SessionCommitted,
		SessionDiscarded,
		SessionTimedOut:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state ends the session lifecycle
func (s SessionState) IsTerminal() bool {
	switch s {
	case SessionCommitted, SessionDiscarded, SessionTimedOut:
		return true
	default:
		return false
	}
}

// String returns the string representation of the session state
func (s SessionState) String() string {
	return string(s)
}
