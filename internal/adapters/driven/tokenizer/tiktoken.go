// Package tokenizer provides the tiktoken-backed Tokenizer adapter.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Tokenizer = (*Tiktoken)(nil)

// Tiktoken tokenizes with the cl100k_base encoding, the token accounting
// used by the OpenAI text-embedding-3 models.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewCL100K loads the cl100k_base encoding.
func NewCL100K() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load cl100k_base encoding: %w", err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode tokenizes text into an ordered token sequence.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode converts a token sequence back to text.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
