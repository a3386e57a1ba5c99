// Package textsplit splits page text into overlapping, size-bounded chunks.
package textsplit

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
const DefaultChunkOverlap = 200

// DefaultSeparators are tried in order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter recursively splits text on a priority list of separators.
// Lengths are measured in characters (runes), not bytes.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
	logger     *slog.Logger
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
func WithSeparators(seps []string) Option {
	return func(s *Splitter) {
		if len(seps) > 0 {
			s.separators = seps
		}
	}
}

// WithLogger sets the logger used for oversized-chunk warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Splitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Splitter. An overlap that is not smaller than the chunk size is
// reduced to a quarter of the chunk size.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the configured maximum chunk size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// SplitText splits text into chunks of at most ChunkSize characters where the
// separators allow it.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator present in the text; the rest are for recursion.
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range splitKeepingSeparator(text, separator) {
		if length(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// merge packs small pieces into chunks no larger than chunkSize, carrying up to
// overlap characters of trailing pieces into the next chunk. Separators were
// kept on the pieces, so they are joined without one.
func (s *Splitter) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := length(piece)
		if total+n > s.chunkSize {
			if total > s.chunkSize {
				s.logger.Warn("Created a chunk larger than the chunk size",
					"size", total, "chunk_size", s.chunkSize)
			}
			if len(current) > 0 {
				if doc := join(current); doc != "" {
					out = append(out, doc)
				}
				for total > s.overlap || (total+n > s.chunkSize && total > 0) {
					total -= length(current[0])
					current = current[1:]
				}
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := join(current); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeepingSeparator splits text before every occurrence of sep so each
// separator stays at the start of the following piece. Empty pieces are dropped.
// An empty sep splits into single characters.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	var out []string
	for len(text) > 0 {
		// A match at offset 0 belongs to the current piece.
		idx := strings.Index(text[1:], sep)
		if idx < 0 {
			break
		}
		idx++
		out = append(out, text[:idx])
		text = text[idx:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func join(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
