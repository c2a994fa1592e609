package contract

import "errors"

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrSchemaViolation   = errors.New("model response violates schema")
	ErrPromptMissing     = errors.New("required prompt is missing")
	ErrValidation        = errors.New("validation failed")
	ErrCollaborator      = errors.New("collaborator call failed")
	ErrUnclassifiable    = errors.New("request could not be routed")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
