package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the store
// - ErrExpired: session/refresh token has expired
// - ErrAlreadyUsed: single-use resource (refresh token) already consumed
// - ErrRevoked: session explicitly revoked
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrRevoked     = errors.New("revoked")
	ErrUnavailable = errors.New("unavailable")
)
