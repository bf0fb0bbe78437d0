package gemini

import "errors"

var (
	// ErrInvalidConfig indicates the client was constructed with
	// missing or unusable settings.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrEmptyPrompt indicates a query with no prompt text.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)
