package job

import "errors"

// Sentinel errors shared by all Store implementations so callers can map
// them to HTTP status codes without knowing the backend.
var (
	ErrAlreadyExists = errors.New("job already exists")
	ErrNotFound      = errors.New("job not found")
)
