package inference

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

// Tokenizer wraps a HuggingFace tokenizer.json.
type Tokenizer struct {
	tk *tokenizers.Tokenizer
}

func NewTokenizer(path string) (*Tokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &Tokenizer{tk: tk}, nil
}

// Encode writes the token ids of text into ids and the matching attention
// mask into mask, truncating to len(ids). Unused positions are zeroed.
// It returns the number of tokens written.
func (t *Tokenizer) Encode(text string, ids, mask []int64) int {
	tokens, _ := t.tk.Encode(text, true)

	n := 0
	for i := range ids {
		ids[i], mask[i] = 0, 0
		if i < len(tokens) {
			ids[i] = int64(tokens[i])
			mask[i] = 1
			n++
		}
	}
	return n
}

// Decode turns ids back into text, dropping special tokens.
func (t *Tokenizer) Decode(ids []int64) string {
	u := make([]uint32, len(ids))
	for i, id := range ids {
		u[i] = uint32(id)
	}
	return t.tk.Decode(u, true)
}

func (t *Tokenizer) Close() error {
	return t.tk.Close()
}
