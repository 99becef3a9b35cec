package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")

	ErrDuplicateTool = errors.New("tool name already registered")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrOracle        = errors.New("oracle call failed")
)
