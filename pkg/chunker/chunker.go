package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultChunkSize targets roughly 200-400 tokens at ~4 chars/token
	DefaultChunkSize = 1200
	// DefaultOverlap keeps 10-15% of the previous chunk as shared context
	DefaultOverlap = 150
)

// sentenceEnd marks a sentence boundary: terminal punctuation followed by
// whitespace. The punctuation stays with the preceding sentence.
var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Chunk is one contiguous piece of a document. Offsets are byte positions
// into the trimmed input text; overlapping ranges between neighbours are
// expected.
type Chunk struct {
	Idx         int
	Text        string
	StartOffset int
	EndOffset   int
}

type sentence struct {
	text  string
	start int
}

// Split breaks text into overlapping chunks on sentence boundaries. The
// result is deterministic for identical input. Empty or whitespace-only
// input yields no chunks; input at most chunkSize long yields exactly one.
func Split(text string, chunkSize, overlap int) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if len(text) <= chunkSize {
		return []Chunk{{Idx: 0, Text: text, StartOffset: 0, EndOffset: len(text)}}
	}

	sentences := splitSentences(text)

	var chunks []Chunk
	current := ""
	currentStart := 0

	for _, sent := range sentences {
		if current != "" && len(current)+len(sent.text)+1 > chunkSize {
			trimmed := strings.TrimSpace(current)
			chunks = append(chunks, Chunk{
				Idx:         len(chunks),
				Text:        trimmed,
				StartOffset: currentStart,
				EndOffset:   currentStart + len(trimmed),
			})

			overlapText := tailOverlap(current, overlap)
			currentStart = currentStart + len(current) - len(overlapText)
			current = strings.TrimLeftFunc(overlapText, unicode.IsSpace) + " " + sent.text
			continue
		}

		if current == "" {
			currentStart = sent.start
			current = sent.text
		} else {
			current = current + " " + sent.text
		}
	}

	if trimmed := strings.TrimSpace(current); trimmed != "" {
		chunks = append(chunks, Chunk{
			Idx:         len(chunks),
			Text:        trimmed,
			StartOffset: currentStart,
			EndOffset:   currentStart + len(trimmed),
		})
	}

	return chunks
}

// splitSentences cuts text after terminal punctuation, dropping the
// separating whitespace but recording each sentence's position.
func splitSentences(text string) []sentence {
	var out []sentence
	prev := 0
	for _, m := range sentenceEnd.FindAllStringIndex(text, -1) {
		// m[0] is the punctuation byte, which belongs to the sentence.
		out = append(out, sentence{text: text[prev : m[0]+1], start: prev})
		prev = m[1]
	}
	if prev < len(text) {
		out = append(out, sentence{text: text[prev:], start: prev})
	}
	return out
}

// tailOverlap returns the last overlap bytes of s, widened left to a rune
// boundary so a multi-byte character is never cut.
func tailOverlap(s string, overlap int) string {
	if len(s) <= overlap {
		return s
	}
	start := len(s) - overlap
	for start > 0 && !utf8.RuneStart(s[start]) {
		start--
	}
	return s[start:]
}
