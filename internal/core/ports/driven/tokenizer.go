package driven

// Tokenizer converts text to and from the token sequence the embedding
// model accounts in. The chunker slides its windows over these tokens.
type Tokenizer interface {
	// Encode tokenizes text into an ordered token sequence.
	Encode(text string) []int

	// Decode converts a token sequence back to text.
	Decode(tokens []int) string
}
