package textsplit

import "strings"

// Document is a unit of text with its raw loader metadata.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Chunk is a piece of a Document. Metadata is the document's metadata plus
// loc.lines; it is not normalized here.
type Chunk struct {
	Text     string
	Metadata map[string]any
	// Document is the index of the source document in the input slice.
	Document int
	// Seq is the chunk's position within its document. Unlike Offset it is
	// unique: overlapping chunks may start at the same byte.
	Seq int
	// Offset is the byte offset of Text within the source document text.
	Offset int
}

// SplitDocuments splits every document and attributes each chunk to its source.
// Each chunk's metadata gains loc.lines {from, to}, the 1-based line range the
// chunk covers within its document.
func (s *Splitter) SplitDocuments(docs []Document) []Chunk {
	var out []Chunk
	for i, doc := range docs {
		prev := -1
		for seq, text := range s.SplitText(doc.Text) {
			idx := indexFrom(doc.Text, text, prev+1)
			if idx < 0 {
				// A longer chunk that starts where the previous one did.
				idx = indexFrom(doc.Text, text, max(prev, 0))
			}
			if idx < 0 {
				idx = max(prev, 0)
			}
			from := 1 + strings.Count(doc.Text[:idx], "\n")
			to := from + strings.Count(text, "\n")

			out = append(out, Chunk{
				Text:     text,
				Metadata: withLines(doc.Metadata, from, to),
				Document: i,
				Seq:      seq,
				Offset:   idx,
			})
			prev = idx
		}
	}
	return out
}

func indexFrom(s, substr string, from int) int {
	if from > len(s) {
		return -1
	}
	idx := strings.Index(s[from:], substr)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// withLines copies meta and records the line range under loc.lines.
func withLines(meta map[string]any, from, to int) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}

	loc := map[string]any{}
	if existing, ok := meta["loc"].(map[string]any); ok {
		for k, v := range existing {
			loc[k] = v
		}
	}
	loc["lines"] = map[string]any{"from": from, "to": to}
	out["loc"] = loc

	return out
}
