package domain

import (
	"strings"
	"unicode/utf8"
)

// ChunkerVersion tracks the chunking algorithm so a corpus rebuild can tell
// which cut produced the stored chunks.
type ChunkerVersion string

const (
	// ChunkerVersionV1 is the sentence-window chunker with overlap.
	ChunkerVersionV1 ChunkerVersion = "v1"
)

const (
	// MaxChunkLength is the maximum chunk length in characters.
	MaxChunkLength = 2000
	// ChunkOverlap is the approximate number of trailing characters repeated
	// at the start of the following chunk to preserve local context.
	ChunkOverlap = 300
	// MinChunkLength is the minimum chunk length; shorter trailing chunks are
	// merged into their predecessor.
	MinChunkLength = 80
)

// ArticleChunk is the chunker's output before embedding and upload.
type ArticleChunk struct {
	Ordinal int
	Content string
}

// Chunker defines the interface for splitting article text into chunks.
type Chunker interface {
	Chunk(body string) ([]ArticleChunk, error)
	Version() ChunkerVersion
}

type sentenceChunker struct{}

// NewChunker creates the default sentence-window chunker.
func NewChunker() Chunker {
	return &sentenceChunker{}
}

func (c *sentenceChunker) Version() ChunkerVersion {
	return ChunkerVersionV1
}

// Chunk splits the body at sentence boundaries into windows of at most
// MaxChunkLength characters, repeating roughly ChunkOverlap characters of
// trailing sentences at the start of the next window.
func (c *sentenceChunker) Chunk(body string) ([]ArticleChunk, error) {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return nil, nil
	}

	sentences := splitIntoSentences(normalized)

	var windows []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		windows = append(windows, strings.Join(current, " "))

		// Seed the next window with trailing sentences up to the overlap budget.
		var carry []string
		carryLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			l := utf8.RuneCountInString(current[i])
			if carryLen+l > ChunkOverlap {
				break
			}
			carry = append([]string{current[i]}, carry...)
			carryLen += l + 1
		}
		current = carry
		currentLen = carryLen
	}

	for _, sentence := range sentences {
		l := utf8.RuneCountInString(sentence)
		if currentLen > 0 && currentLen+1+l > MaxChunkLength {
			flush()
		}
		current = append(current, sentence)
		currentLen += l + 1
	}
	if len(current) > 0 {
		windows = append(windows, strings.Join(current, " "))
	}

	windows = mergeShortTrailing(windows)

	chunks := make([]ArticleChunk, 0, len(windows))
	for i, content := range windows {
		chunks = append(chunks, ArticleChunk{Ordinal: i, Content: content})
	}
	return chunks, nil
}

// mergeShortTrailing folds a final chunk shorter than MinChunkLength into its
// predecessor when that chunk is not the only one.
func mergeShortTrailing(windows []string) []string {
	n := len(windows)
	if n < 2 {
		return windows
	}
	if utf8.RuneCountInString(windows[n-1]) >= MinChunkLength {
		return windows
	}
	windows[n-2] = windows[n-2] + " " + windows[n-1]
	return windows[:n-1]
}

// splitIntoSentences splits text into sentences at . ! ? boundaries followed
// by whitespace or end of text.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
					sentences = append(sentences, trimmed)
				}
				current.Reset()
			}
		}
	}

	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		sentences = append(sentences, trimmed)
	}

	return sentences
}
