// Package chunker splits document text into overlapping token-bounded
// passages suitable for embedding.
package chunker

import (
	"fmt"
	"strings"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/domain"
	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/ports/driven"
)

// Chunker slides a fixed-size token window over a document's text. Window
// boundaries are snapped to word boundaries, so a chunk's real token count
// can be lower than the nominal window size.
type Chunker struct {
	tok driven.Tokenizer
}

// New creates a Chunker on top of a tokenizer consistent with the embedding
// model's token accounting.
func New(tok driven.Tokenizer) *Chunker {
	return &Chunker{tok: tok}
}

// Chunk splits text into ordered passages of at most maxTokens tokens with
// overlapTokens of overlap between consecutive passages. Empty or
// whitespace-only text yields an empty slice. overlapTokens must be
// strictly less than maxTokens.
func (c *Chunker) Chunk(text string, maxTokens, overlapTokens int) ([]domain.Chunk, error) {
	if maxTokens <= 0 || overlapTokens < 0 || overlapTokens >= maxTokens {
		return nil, fmt.Errorf("%w: max_tokens=%d overlap_tokens=%d",
			domain.ErrInvalidChunking, maxTokens, overlapTokens)
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tokens := c.tok.Encode(text)
	if len(tokens) <= maxTokens {
		return []domain.Chunk{{Text: text, TokenCount: len(tokens)}}, nil
	}

	var chunks []domain.Chunk
	start := 0

	for start < len(tokens) {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		window := c.tok.Decode(tokens[start:end])

		// Non-first windows drop the leading partial word so the passage
		// starts on a word boundary.
		if start > 0 {
			if i := strings.Index(window, " "); i > 0 {
				window = window[i+1:]
			}
		}

		// Non-last windows drop the trailing partial word.
		if end < len(tokens) {
			if i := strings.LastIndex(window, " "); i > 0 {
				window = window[:i]
			}
		}

		trimmed := strings.TrimSpace(window)
		if trimmed != "" {
			chunks = append(chunks, domain.Chunk{
				Text: trimmed,
				// Re-tokenize: boundary trimming changes the count.
				TokenCount: len(c.tok.Encode(trimmed)),
			})
		}

		start = end - overlapTokens

		// Guards against re-emitting the tail forever.
		if start >= len(tokens)-overlapTokens {
			break
		}
	}

	return chunks, nil
}
