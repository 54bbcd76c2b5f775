package domain

// ChunkType is the kind of frame written to an SSE stream
type ChunkType string

const (
	ChunkDelta    ChunkType = "DELTA"
	ChunkComplete ChunkType = "COMPLETE"
	ChunkError    ChunkType = "ERROR"
)

// ErrorCode is a machine-readable error carried over the API boundary
type ErrorCode string

const (
	CodeAgentTimeout       ErrorCode = "AGENT_TIMEOUT"
	CodeAgentError         ErrorCode = "AGENT_ERROR"
	CodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	CodeClientDisconnected ErrorCode = "CLIENT_DISCONNECTED"
)

// APIError is the error payload of an ERROR frame
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// StreamChunk is one SSE frame
type StreamChunk struct {
	Type    ChunkType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// DeltaChunk wraps a text fragment
func DeltaChunk(content string) StreamChunk {
	return StreamChunk{Type: ChunkDelta, Content: content}
}

// CompleteChunk terminates a successful stream
func CompleteChunk() StreamChunk {
	return StreamChunk{Type: ChunkComplete}
}

// ErrorChunk terminates a failed stream
func ErrorChunk(code ErrorCode, message string, retryable bool) StreamChunk {
	return StreamChunk{Type: ChunkError, Error: &APIError{Code: code, Message: message, Retryable: retryable}}
}
