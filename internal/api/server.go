package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bull/pdf-rag/internal/llm"
	"github.com/bull/pdf-rag/internal/rag"
)

const maxBodyBytes = 1 << 20

// Querier is the query pipeline as seen by the HTTP adapter.
type Querier interface {
	Retrieve(ctx context.Context, query string, k int) (*rag.Retrieval, error)
	Answer(ctx context.Context, query string, k int) (*rag.Answer, error)
	AnswerStream(ctx context.Context, query string, k int) (*rag.Stream, error)
	Chat(ctx context.Context, messages []llm.Message, k int) (*rag.Stream, error)
}

// Server serves the query API, health check and landing page.
type Server struct {
	querier  Querier
	health   HealthChecker
	defaultK int
	logger   *slog.Logger
}

// NewServer creates the HTTP adapter. A non-positive defaultK selects rag.DefaultK.
func NewServer(querier Querier, health HealthChecker, defaultK int, logger *slog.Logger) *Server {
	if defaultK <= 0 {
		defaultK = rag.DefaultK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{querier: querier, health: health, defaultK: defaultK, logger: logger}
}

// Register mounts the routes on mux, leaving /mcp free for the MCP handler.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /health", NewHealthHandler(s.health))
	mux.HandleFunc("GET /{$}", NewLandingHandler())
}

// Handler returns a mux with only this server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	k, ok := s.topK(w, req.K)
	if !ok {
		return
	}

	switch req.Mode {
	case ModeRetrieve:
		res, err := s.querier.Retrieve(r.Context(), req.Query, k)
		if err != nil {
			s.writeError(w, err, "query")
			return
		}
		writeJSON(w, http.StatusOK, res)

	case ModeGenerate, "":
		if req.Stream {
			stream, err := s.querier.AnswerStream(r.Context(), req.Query, k)
			if err != nil {
				s.writeError(w, err, "query")
				return
			}
			s.writeStream(w, stream)
			return
		}
		res, err := s.querier.Answer(r.Context(), req.Query, k)
		if err != nil {
			s.writeError(w, err, "query")
			return
		}
		writeJSON(w, http.StatusOK, res)

	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("Mode must be %q or %q", ModeRetrieve, ModeGenerate),
		})
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	k, ok := s.topK(w, req.K)
	if !ok {
		return
	}

	stream, err := s.querier.Chat(r.Context(), toLLMMessages(req.Messages), k)
	if err != nil {
		s.writeError(w, err, "chat")
		return
	}
	s.writeStream(w, stream)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return false
	}
	return true
}

func (s *Server) topK(w http.ResponseWriter, k int) (int, bool) {
	switch {
	case k < 0:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "k must be positive"})
		return 0, false
	case k == 0:
		return s.defaultK, true
	}
	return k, true
}

// writeError maps input errors to 400 and everything else to 500 with
// redacted details.
func (s *Server) writeError(w http.ResponseWriter, err error, action string) {
	var inputErr *rag.InputError
	if errors.As(err, &inputErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: inputErr.Msg})
		return
	}
	s.logger.Error("Request failed", "action", action, "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "Failed to process " + action,
		Details: redact(err.Error()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
