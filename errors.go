package juris

import "errors"

var (
	// ErrMissingCredential indicates a required API key or service URL was not supplied.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidConfig is returned by Config.Validate for settings that can never work.
	ErrInvalidConfig = errors.New("invalid juris config")
)
