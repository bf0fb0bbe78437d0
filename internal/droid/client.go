package droid

import "context"

// ChunkType classifies a streamed output chunk.
type ChunkType string

const (
	// ChunkAssistant carries model-authored text intended for the user.
	ChunkAssistant ChunkType = "assistant"

	// ChunkSystem carries tool output, status lines, and other
	// non-authored text.
	ChunkSystem ChunkType = "system"

	// ChunkResult carries a terminal summary emitted at stream end.
	ChunkResult ChunkType = "result"
)

// Chunk is one unit of streamed execution output.
type Chunk struct {
	Type      ChunkType
	Content   string
	SessionID string

	// Err reports a stream-level failure. When set, the other fields
	// are meaningless and the stream ends after this chunk.
	Err error
}

// Query describes one execution request.
type Query struct {
	Prompt     string
	WorkingDir string

	// SessionID resumes an existing session when non-empty.
	SessionID string
}

// Client starts executions and streams their output.
type Client interface {
	// SendQuery begins an execution and returns a channel of chunks.
	// The channel is closed when the stream ends. Cancelling ctx
	// aborts the execution; the channel still closes.
	SendQuery(ctx context.Context, query Query) (<-chan Chunk, error)
}
