package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bull/pdf-rag/internal/rag"
)

// sourcesEvent always carries a results array, even an empty one.
type sourcesEvent struct {
	Type    string         `json:"type"`
	Results []rag.Document `json:"results"`
}

// writeStream forwards a generation stream as server-sent events:
// start, sources, text-delta..., finish (or error), then [DONE].
// Returning early on a write failure is safe: the request context is
// canceled when the handler returns, which stops the producer.
func (s *Server) writeStream(w http.ResponseWriter, stream *rag.Stream) {
	flusher, _ := w.(http.Flusher)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// AI SDK chat clients expect the UI message stream protocol header.
	h.Set("X-Vercel-AI-UI-Message-Stream", "v1")
	w.WriteHeader(http.StatusOK)

	send := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	results := stream.Results
	if results == nil {
		results = []rag.Document{}
	}
	if send(streamEvent{Type: "start"}) != nil || send(sourcesEvent{Type: "sources", Results: results}) != nil {
		return
	}

	for ev := range stream.Events {
		var err error
		switch ev.Type {
		case rag.EventDelta:
			err = send(streamEvent{Type: "text-delta", Delta: ev.Delta})
		case rag.EventDone:
			err = send(streamEvent{Type: "finish"})
		case rag.EventError:
			s.logger.Error("Stream failed", "error", ev.Err)
			err = send(streamEvent{Type: "error", ErrorText: redact(ev.Err.Error())})
		}
		if err != nil {
			s.logger.Debug("Client went away during stream", "error", err)
			return
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
