package tool

import "errors"

var (
	// ErrToolNotFound is returned when executing a tool that is not registered
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidInput is returned when tool input does not match the tool schema
	ErrInvalidInput = errors.New("invalid tool input")

	// ErrToolTimeout is returned when a tool exceeds the executor timeout
	ErrToolTimeout = errors.New("tool execution timeout")

	// ErrToolCanceled is returned when the run is canceled while a tool executes
	ErrToolCanceled = errors.New("tool execution canceled")
)
