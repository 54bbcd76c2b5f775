package domain

import "errors"

// Validation errors
var (
	ErrInvalidSessionID = errors.New("invalid session ID format")
	ErrEmptyContent     = errors.New("message content cannot be empty")
	ErrContentTooLong   = errors.New("message too long")
	ErrInvalidAgentType = errors.New("invalid agent type")
	ErrOwnerRequired    = errors.New("userId or deviceId is required")
)

// Chat errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStreamConsumed  = errors.New("stream already consumed for this message")
)

// Brokerage errors
var (
	ErrStateNotFound       = errors.New("invalid OAuth state")
	ErrStateUsed           = errors.New("OAuth state already used")
	ErrStateExpired        = errors.New("OAuth state expired")
	ErrNotConnected        = errors.New("brokerage account not connected")
	ErrBalanceUnavailable  = errors.New("balance currently unavailable")
	ErrBrokerNotConfigured = errors.New("broker API credentials not configured")
)
