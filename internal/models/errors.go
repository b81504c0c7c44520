package models

import "errors"

// Error taxonomy of the sync engine. Components wrap these with %w; the engine
// matches them with errors.Is to pick a state transition.
var (
	// ErrBootstrap means identity or storage was unavailable at startup. Fatal.
	ErrBootstrap = errors.New("bootstrap failure")

	// ErrTransport covers network and HTTP failures. Retried on the next tick.
	ErrTransport = errors.New("transport failure")

	// ErrClassificationAmbiguous marks an unrecognized payload. Treated as a no-op tick.
	ErrClassificationAmbiguous = errors.New("unrecognized content source response")

	// ErrMaterialization means the validation pass aborted. The candidate is discarded.
	ErrMaterialization = errors.New("materialization failure")

	// ErrStorageWrite means the cache write failed after a successful materialization.
	ErrStorageWrite = errors.New("storage write failure")
)
