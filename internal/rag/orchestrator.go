package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/pdf-rag/internal/llm"
)

// EventType distinguishes stream events.
type EventType int

const (
	// EventDelta carries a text fragment.
	EventDelta EventType = iota
	// EventDone ends a successful stream.
	EventDone
	// EventError ends a failed stream.
	EventError
)

// Event is one element of a generation stream.
type Event struct {
	Type  EventType
	Delta string
	Err   error
}

// Retrieval is the result of a retrieve-only query.
type Retrieval struct {
	Query   string     `json:"query"`
	Results []Document `json:"results"`
}

// Answer is the result of a generate query.
type Answer struct {
	Query   string     `json:"query"`
	Answer  string     `json:"answer"`
	Results []Document `json:"results"`
}

// Stream is an answer whose text arrives incrementally. Sources are known
// before the first fragment. Events is closed after the final EventDone or
// EventError; callers that stop reading early must cancel the context.
type Stream struct {
	Results []Document
	Events  <-chan Event
}

// Orchestrator runs the query pipeline.
type Orchestrator struct {
	retriever *Retriever
	assembler *Assembler
	model     llm.Model
	logger    *slog.Logger
}

// NewOrchestrator wires the query pipeline.
func NewOrchestrator(retriever *Retriever, assembler *Assembler, model llm.Model, logger *slog.Logger) *Orchestrator {
	if assembler == nil {
		assembler = NewAssembler(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{retriever: retriever, assembler: assembler, model: model, logger: logger}
}

// Retrieve returns the k nearest chunks without calling the model.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, k int) (*Retrieval, error) {
	query, err := validQuery(query)
	if err != nil {
		return nil, err
	}
	docs, err := o.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return &Retrieval{Query: query, Results: docs}, nil
}

// Answer retrieves context and generates a grounded answer. When nothing is
// retrieved it returns FallbackAnswer without calling the model.
func (o *Orchestrator) Answer(ctx context.Context, query string, k int) (*Answer, error) {
	query, err := validQuery(query)
	if err != nil {
		return nil, err
	}
	docs, err := o.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &Answer{Query: query, Answer: FallbackAnswer, Results: docs}, nil
	}

	req := o.request(docs, []llm.Message{{Role: llm.RoleUser, Content: query}})
	text, err := o.model.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %w", ErrProviderUnavailable, err)
	}

	o.logger.Debug("Generated answer", "model", o.model.Name(), "sources", len(docs))
	return &Answer{Query: query, Answer: text, Results: docs}, nil
}

// AnswerStream is Answer with incremental output. The fallback answer is
// delivered as a single fragment.
func (o *Orchestrator) AnswerStream(ctx context.Context, query string, k int) (*Stream, error) {
	query, err := validQuery(query)
	if err != nil {
		return nil, err
	}
	docs, err := o.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &Stream{Results: docs, Events: fixed(FallbackAnswer)}, nil
	}

	req := o.request(docs, []llm.Message{{Role: llm.RoleUser, Content: query}})
	return &Stream{Results: docs, Events: o.stream(ctx, req)}, nil
}

// Chat answers the last user turn of a conversation, streaming the reply.
// Unlike AnswerStream it always calls the model; an empty retrieval tells
// the model to answer as best it can.
func (o *Orchestrator) Chat(ctx context.Context, messages []llm.Message, k int) (*Stream, error) {
	if len(messages) == 0 {
		return nil, invalidInput("Messages are required")
	}
	for _, m := range messages {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			return nil, invalidInput(fmt.Sprintf("Unsupported message role %q", m.Role))
		}
	}
	last := messages[len(messages)-1]
	if last.Role != llm.RoleUser {
		return nil, invalidInput("Last message must be from user")
	}
	query, err := validQuery(last.Content)
	if err != nil {
		return nil, err
	}

	docs, err := o.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return &Stream{Results: docs, Events: o.stream(ctx, o.request(docs, messages))}, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	results, err := o.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return Documents(results), nil
}

func (o *Orchestrator) request(docs []Document, messages []llm.Message) llm.Request {
	c := o.assembler.Assemble(docs)
	if len(c.Attributions) < len(docs) {
		o.logger.Debug("Context truncated to budget", "kept", len(c.Attributions), "retrieved", len(docs))
	}
	return llm.Request{System: SystemPrompt(c), Messages: messages}
}

// stream runs the model in a producer goroutine. Fragments are forwarded
// unbuffered so a slow consumer applies backpressure to the provider.
func (o *Orchestrator) stream(ctx context.Context, req llm.Request) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)

		err := o.model.Stream(ctx, req, func(delta string) error {
			select {
			case events <- Event{Type: EventDelta, Delta: delta}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		final := Event{Type: EventDone}
		if err != nil {
			o.logger.Warn("Generation stream failed", "model", o.model.Name(), "error", err)
			final = Event{Type: EventError, Err: fmt.Errorf("%w: generate: %w", ErrProviderUnavailable, err)}
		}
		select {
		case events <- final:
		case <-ctx.Done():
		}
	}()
	return events
}

func fixed(text string) <-chan Event {
	events := make(chan Event, 2)
	events <- Event{Type: EventDelta, Delta: text}
	events <- Event{Type: EventDone}
	close(events)
	return events
}

func validQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", invalidInput("Query is required")
	}
	return query, nil
}
