package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrAuthFailed indicates the narration provider rejected the key
	ErrAuthFailed = errors.New("narration key rejected")

	// ErrQuotaExhausted indicates the narration key is out of quota
	ErrQuotaExhausted = errors.New("narration key quota exhausted")

	// ErrProviderUnavailable indicates a transient provider failure
	ErrProviderUnavailable = errors.New("narration provider unavailable")
)
