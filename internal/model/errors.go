package model

import "errors"

var (
	// ErrSignerUnavailable means no identity-proof capability is present.
	ErrSignerUnavailable = errors.New("no signer available")

	// ErrProfileUnavailable means no relay produced a profile in time. Non-fatal.
	ErrProfileUnavailable = errors.New("profile unavailable")

	// ErrUserNotFound means the identity has never logged in.
	ErrUserNotFound = errors.New("user not found")

	// ErrMalformedIdentity means an identity string failed to decode.
	ErrMalformedIdentity = errors.New("malformed identity")

	// ErrStorageFailure wraps any backing store failure.
	ErrStorageFailure = errors.New("storage failure")

	// ErrUnknownCharacter means the requested character is not in the catalog.
	ErrUnknownCharacter = errors.New("unknown character")

	// ErrInvalidInput means a request failed schema validation.
	ErrInvalidInput = errors.New("invalid input")
)
