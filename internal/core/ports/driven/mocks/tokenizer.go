package mocks

// MockTokenizer is a rune-based tokenizer for testing. Each rune becomes
// one token, so window arithmetic in tests can be reasoned about exactly.
type MockTokenizer struct{}

// NewMockTokenizer creates a new MockTokenizer
func NewMockTokenizer() *MockTokenizer {
	return &MockTokenizer{}
}

func (m *MockTokenizer) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (m *MockTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}
