package rag

import (
	"context"
	"sync"

	"github.com/bull/pdf-rag/internal/llm"
	"github.com/bull/pdf-rag/internal/metadata"
	"github.com/bull/pdf-rag/internal/storage"
)

type fakeStore struct {
	results  []storage.Result
	count    uint64
	countErr error
	queryErr error

	mu     sync.Mutex
	lastK  int
	called int
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) CollectionExists(context.Context) (bool, error) { return s.countErr == nil, nil }
func (s *fakeStore) EnsureCollection(context.Context, int) error { return nil }
func (s *fakeStore) Upsert(context.Context, []storage.Record) error { return nil }
func (s *fakeStore) Close() error { return nil }
func (s *fakeStore) Count(context.Context) (uint64, error) { return s.count, s.countErr }

func (s *fakeStore) Query(_ context.Context, _ []float32, k int) ([]storage.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastK = k
	s.called++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if len(s.results) > k {
		return s.results[:k], nil
	}
	return s.results, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fakeModel records the last request and replays fragments.
type fakeModel struct {
	fragments []string
	err       error

	mu    sync.Mutex
	calls int
	last  llm.Request
}

func (m *fakeModel) record(req llm.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = req
}

func (m *fakeModel) Complete(_ context.Context, req llm.Request) (string, error) {
	m.record(req)
	if m.err != nil {
		return "", m.err
	}
	var out string
	for _, f := range m.fragments {
		out += f
	}
	return out, nil
}

func (m *fakeModel) Stream(_ context.Context, req llm.Request, onDelta func(string) error) error {
	m.record(req)
	for _, f := range m.fragments {
		if err := onDelta(f); err != nil {
			return err
		}
	}
	return m.err
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) request() (llm.Request, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.calls
}

func result(text, source string, page int64, distance float64) storage.Result {
	raw := map[string]any{metadata.KeySource: source}
	if page > 0 {
		raw[metadata.KeyPageNumber] = page
	}
	return storage.Result{Text: text, Metadata: metadata.Normalize(raw), Distance: distance}
}
