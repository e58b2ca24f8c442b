package model

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy shared across the engines. Callers distinguish cases with
// errors.Is against these sentinels.
var (
	// ErrStoreUnavailable marks transient graph store failures. Retryable.
	ErrStoreUnavailable = goerr.New("graph store unavailable")

	// ErrInvalidInput marks structurally bad input: unknown concept type,
	// empty content, or an embedding of the wrong dimension. Not retryable.
	ErrInvalidInput = goerr.New("invalid input")

	// ErrNodeNotFound marks lookups of nodes that do not exist.
	ErrNodeNotFound = goerr.New("memory node not found")

	// ErrSessionNotFound marks operations on unknown or already-terminal
	// think sessions.
	ErrSessionNotFound = goerr.New("think session not found")

	// ErrInvalidTransition marks think session operations called in a state
	// that forbids them. Session state is left unchanged.
	ErrInvalidTransition = goerr.New("invalid session transition")

	// ErrLimitExceeded marks think_add calls past max_thoughts or max_depth.
	// Session state is left unchanged.
	ErrLimitExceeded = goerr.New("session limit exceeded")

	// ErrAmbiguousDuplicate is a soft signal recorded when more than one node
	// clears the duplicate threshold and the rank tie-break is exercised. It
	// never blocks a decision.
	ErrAmbiguousDuplicate = goerr.New("ambiguous duplicate candidates")
)
