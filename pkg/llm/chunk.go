package llm

// ContentType distinguishes the kinds of content a stream can carry.
type ContentType string

const (
	ContentTypeMessage  ContentType = "message"  // regular response content
	ContentTypeThinking ContentType = "thinking" // model reasoning, when the provider separates it
)

// StreamChunk is one increment of a streaming completion.
type StreamChunk struct {
	// Role is set on the first chunk of a response (e.g., "assistant").
	Role string

	// Content is the text delta carried by this chunk.
	Content string

	// Type classifies the content. Providers that do not separate reasoning
	// emit everything as ContentTypeMessage.
	Type ContentType

	// Finished is true on the final chunk of a successful stream.
	Finished bool

	// Error is set when the stream failed mid-flight. The channel closes
	// after an error chunk.
	Error error
}

// IsError returns true if the chunk carries a stream error.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}
