// Package api exposes the query pipeline over HTTP.
package api

import (
	"github.com/bull/pdf-rag/internal/llm"
	"github.com/bull/pdf-rag/internal/rag"
)

// Query modes.
const (
	ModeRetrieve = "retrieve"
	ModeGenerate = "generate"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query string `json:"query"`
	// K defaults to the configured top k when zero or absent.
	K    int    `json:"k,omitempty"`
	Mode string `json:"mode,omitempty"`
	// Stream answers generate mode as a server-sent event stream.
	Stream bool `json:"stream,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	K        int           `json:"k,omitempty"`
}

// ChatMessage accepts either plain content or UI message parts.
type ChatMessage struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []MessagePart `json:"parts,omitempty"`
}

// MessagePart is one part of a UI message. Only text parts are read.
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text returns the message content, falling back to its first text part.
func (m ChatMessage) Text() string {
	if m.Content != "" {
		return m.Content
	}
	for _, p := range m.Parts {
		if p.Type == "text" || p.Type == "" {
			return p.Text
		}
	}
	return ""
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// streamEvent is one server-sent event of an answer stream.
type streamEvent struct {
	Type      string         `json:"type"`
	Delta     string         `json:"delta,omitempty"`
	Results   []rag.Document `json:"results,omitempty"`
	ErrorText string         `json:"errorText,omitempty"`
}

func toLLMMessages(in []ChatMessage) []llm.Message {
	out := make([]llm.Message, len(in))
	for i, m := range in {
		out[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Text()}
	}
	return out
}
