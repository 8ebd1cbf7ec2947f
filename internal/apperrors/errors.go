// Package apperrors defines the error taxonomy shared across packages.
package apperrors

import "errors"

var (
	// ErrStorageUnavailable means the learned-state storage is missing,
	// corrupt or could not be written.
	ErrStorageUnavailable = errors.New("learned-state storage unavailable")
	// ErrInvalidHorizon means a window size is not a positive number of days
	// or falls outside the allowed range.
	ErrInvalidHorizon = errors.New("invalid horizon")
	// ErrSourceFetchFailed means the remote schedule could not be fetched or parsed.
	ErrSourceFetchFailed = errors.New("schedule source fetch failed")

	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)
