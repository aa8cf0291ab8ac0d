// Package tokens counts and windows text by tiktoken tokens.
package tokens

import (
	"fmt"
	"math"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

// DefaultEncoding is used for chunking and prompt accounting.
const DefaultEncoding = tokenizer.Cl100kBase

var (
	codecCache = make(map[tokenizer.Encoding]tokenizer.Codec)
	cacheMu    sync.RWMutex
)

// getCodec returns a cached codec for the encoding.
func getCodec(encoding tokenizer.Encoding) (tokenizer.Codec, error) {
	cacheMu.RLock()
	if cached, ok := codecCache[encoding]; ok {
		cacheMu.RUnlock()
		return cached, nil
	}
	cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("get encoding %s: %w", encoding, err)
	}

	cacheMu.Lock()
	codecCache[encoding] = codec
	cacheMu.Unlock()
	return codec, nil
}

// Counter counts tokens with a tiktoken codec.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter returns a counter for encoding.
func NewCounter(encoding tokenizer.Encoding) (*Counter, error) {
	codec, err := getCodec(encoding)
	if err != nil {
		return nil, err
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) (int, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountRequest counts the tokens a completion request will send, including
// per-message overhead.
func (c *Counter) CountRequest(req *domain.CompletionRequest) int {
	total := 0
	if req.System != "" {
		ids, _, _ := c.codec.Encode(req.System)
		total += len(ids) + 4
	}
	for _, msg := range req.Messages {
		ids, _, _ := c.codec.Encode(msg.Content)
		total += len(ids) + 4 // role and separators
	}
	return total + 3 // assistant priming
}

// Split cuts text into windows of at most size tokens, each starting
// size-overlap tokens after the previous one.
func (c *Counter) Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, %d)", size)
	}

	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(ids); start += step {
		end := min(start+size, len(ids))
		chunk, err := c.codec.Decode(ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		chunks = append(chunks, chunk)
		if end == len(ids) {
			break
		}
	}
	return chunks, nil
}

// Estimate approximates a token count from characters when no codec is
// available.
func Estimate(text string) int {
	const charsPerToken = 4.0
	return int(math.Ceil(float64(len(text)) / charsPerToken))
}
