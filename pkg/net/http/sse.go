package http

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// SSEWriter emits the one-frame-per-line dialect from spec.md §4.8:
// `data: <json>\n\n`, flushed after every frame so a client that supports
// true chunked transfer sees tokens as they arrive, while one that doesn't
// still receives a byte stream that parses correctly line by line.
type SSEWriter struct {
	w *bufio.Writer
}

// NewSSEWriterForWriter wraps a bufio.Writer bound to the response stream.
// Response headers (Content-Type: text/event-stream, etc.) must already be
// set on the fiber.Ctx before the caller starts writing - once fasthttp's
// SetBodyStreamWriter callback begins, the header section has already been
// flushed to the connection.
func NewSSEWriterForWriter(w *bufio.Writer) *SSEWriter {
	return &SSEWriter{w: w}
}

// Frame marshals payload to JSON and writes one `data: ...\n\n` frame,
// flushing immediately.
func (s *SSEWriter) Frame(payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}

	return s.w.Flush()
}

// ConversationIDFrame is the first frame of a successful chat stream.
type ConversationIDFrame struct {
	ConversationID string `json:"conversation_id"`
}

// ContentFrame carries one assistant delta.
type ContentFrame struct {
	Content string `json:"content"`
}

// DoneFrame terminates a successful stream.
type DoneFrame struct {
	Done bool `json:"done"`
}

// ErrorFrame terminates a failed stream.
type ErrorFrame struct {
	Error string `json:"error"`
}
