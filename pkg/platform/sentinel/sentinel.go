package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the pipeline and CLI can tell store states apart without
// knowing the backend:
// - ErrNotFound: run or record does not exist in the store
// - ErrConflict: results for the run were already written
// - ErrUnavailable: backend could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
