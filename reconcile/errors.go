package reconcile

import "errors"

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrRetryControllerRequired is returned when a retry controller is not provided.
	ErrRetryControllerRequired = errors.New("retry controller required")
)
