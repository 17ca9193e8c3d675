package service

import "errors"

// Engine error taxonomy. Storage and network failures below the engine are
// wrapped with operation context and surface as opaque internal errors;
// only these sentinels cross the boundary with meaning.
var (
	// ErrInvalidInput marks client-correctable input problems.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsafeURL is a policy rejection. It is always wrapped with the
	// checker's human-readable reason.
	ErrUnsafeURL = errors.New("url blocked for security reasons")

	// ErrCodeTaken is returned when a custom shortcode is already in use.
	ErrCodeTaken = errors.New("shortcode already in use")

	// ErrNotFound covers both a code that never existed and a code not
	// owned by the caller. The two are deliberately indistinguishable so
	// non-owners cannot probe for existence.
	ErrNotFound = errors.New("shortcode not found")

	// ErrExpired means the code exists but its expiry has passed.
	ErrExpired = errors.New("short link expired")

	// ErrGenerationExhausted signals code-space pressure: the generator
	// could not find a free code within the attempt budget. Server-side,
	// not client-correctable.
	ErrGenerationExhausted = errors.New("unable to generate unique shortcode")
)
