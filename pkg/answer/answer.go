package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/contaixt/contaixt/pkg/log"
	"github.com/contaixt/contaixt/pkg/retrieval"
	"github.com/contaixt/contaixt/pkg/types"
)

const requestTimeout = 60 * time.Second

// maxQuoteLen bounds the citation quote taken from the chunk text.
const maxQuoteLen = 200

// NoContextAnswer is returned without a model call when retrieval found
// nothing.
const NoContextAnswer = "No relevant documents found. Make sure documents have been ingested and processed."

const systemPrompt = `You are a knowledge assistant. Answer the user's question using ONLY the provided context.

Context consists of:
1. CHUNKS: Relevant text excerpts from documents (each has a [CHUNK_ID])
2. FACTS: Knowledge graph relationships between entities

Rules:
- Only use information present in the context. Do not use prior knowledge.
- If the context doesn't contain enough information, say so honestly.
- When you use information from a chunk, cite it by including the chunk_id in square brackets, e.g. [chunk-abc123].
- Be concise and direct.
- Answer in the same language as the user's question.

Return your answer as valid JSON with this schema:
{
  "answer": "Your answer with [chunk-id] citations inline...",
  "cited_chunk_ids": ["chunk-id-1", "chunk-id-2"]
}`

// Config holds composer settings.
type Config struct {
	APIKey string
	Model  string
}

// Composer produces grounded answers from retrieved context. Every claim
// must come from the provided chunks and facts; citations link back to
// specific chunks.
type Composer struct {
	api   openai.Client
	model string
}

// New creates a composer.
func New(cfg Config) *Composer {
	return &Composer{
		api:   openai.NewClient(option.WithAPIKey(cfg.APIKey), option.WithRequestTimeout(requestTimeout)),
		model: cfg.Model,
	}
}

// Answer is a grounded response with its citations.
type Answer struct {
	Text      string           `json:"answer"`
	Citations []types.Citation `json:"citations"`
}

// Compose answers the prompt from the retrieved context. With no chunks it
// returns the canned no-context answer without calling the model.
func (c *Composer) Compose(ctx context.Context, prompt string, result *retrieval.Result) (*Answer, error) {
	if result == nil || len(result.Chunks) == 0 {
		return &Answer{Text: NoContextAnswer, Citations: []types.Citation{}}, nil
	}

	contextText := BuildContextPrompt(result.Chunks, result.Facts)

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, prompt)),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call answer model: %w", err)
	}

	raw := "{}"
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		raw = resp.Choices[0].Message.Content
	}

	text, citedIDs := parseAnswer(raw)
	return &Answer{Text: text, Citations: BuildCitations(citedIDs, result.Chunks)}, nil
}

// parseAnswer decodes the strict answer schema. On parse failure the raw
// model output becomes the answer with no citations.
func parseAnswer(raw string) (string, []string) {
	var parsed struct {
		Answer        string   `json:"answer"`
		CitedChunkIDs []string `json:"cited_chunk_ids"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		logger := log.WithComponent("answer")
		logger.Warn().Str("response", truncate(raw, 200)).Msg("failed to parse answer JSON, using raw text")
		return raw, nil
	}
	return parsed.Answer, parsed.CitedChunkIDs
}

// BuildContextPrompt formats chunks and facts into the model's context
// block.
func BuildContextPrompt(chunks []types.RetrievedChunk, facts []types.Fact) string {
	var parts []string

	if len(chunks) > 0 {
		parts = append(parts, "=== CHUNKS ===")
		for _, c := range chunks {
			title := c.DocTitle
			if title == "" {
				title = "untitled"
			}
			source := c.DocSourceType
			if source == "" {
				source = "unknown"
			}
			parts = append(parts, fmt.Sprintf("[%s] (source: %s, doc: %s)", c.ChunkID, source, title))
			parts = append(parts, c.Text)
			parts = append(parts, "")
		}
	}

	if len(facts) > 0 {
		parts = append(parts, "=== KNOWLEDGE GRAPH FACTS ===")
		for _, f := range facts {
			line := fmt.Sprintf("- %s --[%s]--> %s", f.FromName, f.Relation, f.ToName)
			if f.Evidence != "" {
				line += fmt.Sprintf(" (evidence: %s)", truncate(f.Evidence, 100))
			}
			parts = append(parts, line)
		}
		parts = append(parts, "")
	}

	return strings.Join(parts, "\n")
}

// BuildCitations resolves cited chunk ids against the retrieved set.
// Hallucinated ids are dropped; quotes are truncated chunk text.
func BuildCitations(citedIDs []string, chunks []types.RetrievedChunk) []types.Citation {
	byID := make(map[string]types.RetrievedChunk, len(chunks))
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}

	citations := make([]types.Citation, 0, len(citedIDs))
	seen := make(map[string]struct{}, len(citedIDs))
	for _, id := range citedIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		c, ok := byID[id]
		if !ok {
			continue
		}
		citations = append(citations, types.Citation{
			ChunkID:    id,
			DocumentID: c.DocumentID,
			URL:        c.DocURL,
			Title:      c.DocTitle,
			Quote:      truncate(c.Text, maxQuoteLen),
		})
	}
	return citations
}

// truncate caps s at n bytes, narrowed to a rune boundary so quotes never
// end in a split multi-byte character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
