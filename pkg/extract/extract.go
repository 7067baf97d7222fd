package extract

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
	"github.com/contaixt/contaixt/pkg/types"
)

// requestTimeout bounds each chat completion call.
const requestTimeout = 60 * time.Second

// maxContentLen truncates document text sent to the model to stay inside
// token limits.
const maxContentLen = 8000

const systemPrompt = `You are an entity extraction system. Given a document, extract entities and relations.

Return ONLY valid JSON matching this schema:
{
  "entities": [
    {"type": "Person|Company|Topic", "name": "...", "email": "...", "domain": "..."}
  ],
  "relations": [
    {"from_name": "...", "to_name": "...", "type": "MENTIONS|WORKS_AT|HAS_CONTACT", "evidence": "..."}
  ]
}

Rules:
- type must be one of: Person, Company, Topic
- For Person: include email if available
- For Company: include domain if available (e.g. "acme.com")
- For Topic: use a short normalized label (2-4 words max)
- Only extract entities actually mentioned in the text
- Keep evidence spans short (max 100 chars)
- If no entities found, return {"entities": [], "relations": []}
- Do NOT hallucinate entities not present in the text`

// Config holds extraction client settings.
type Config struct {
	APIKey string
	Model  string
}

// Client extracts typed entities and relations from document text with an
// LLM, augmented by header heuristics.
type Client struct {
	api   openai.Client
	model string
}

// New creates an extraction client.
func New(cfg Config) *Client {
	return &Client{
		api:   openai.NewClient(option.WithAPIKey(cfg.APIKey), option.WithRequestTimeout(requestTimeout)),
		model: cfg.Model,
	}
}

// Input carries the document fields the extraction prompt uses.
type Input struct {
	ContentText string
	Title       string
	AuthorName  string
	AuthorEmail string
	SourceType  string
}

// Extract calls the model in JSON mode at temperature 0 and parses the
// strict schema. A malformed model response yields an empty result with a
// warning, never an error: garbage output is a content problem, not a
// transient fault worth retrying.
func (c *Client) Extract(ctx context.Context, in Input) (*types.ExtractionResult, error) {
	content := truncate(in.ContentText, maxContentLen)

	userMsg := fmt.Sprintf(`Extract entities and relations from this document.

Title: %s
Author: %s <%s>
Source: %s

Content:
%s`,
		orDefault(in.Title, "(no title)"),
		orDefault(in.AuthorName, "unknown"),
		orDefault(in.AuthorEmail, "unknown"),
		orDefault(in.SourceType, "unknown"),
		content)

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMsg),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call extraction model: %w", err)
	}

	raw := "{}"
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		raw = resp.Choices[0].Message.Content
	}

	result := ParseResult(raw)
	result.Entities = MergeHeuristicEntities(result.Entities, in.AuthorName, in.AuthorEmail)
	return result, nil
}

// ParseResult decodes the strict extraction schema. Parse failures return
// an empty result.
func ParseResult(raw string) *types.ExtractionResult {
	var result types.ExtractionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		preview := raw
		if len(preview) > 200 {
			preview = preview[:200]
		}
		logger := log.WithComponent("extract")
		logger.Warn().Str("response", preview).Msg("failed to parse extraction JSON, dropping")
		return &types.ExtractionResult{}
	}
	return &result
}

// ignoreDomains are public mail providers that never identify a company.
var ignoreDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"gmx.de":         {},
	"gmx.net":        {},
	"web.de":         {},
	"icloud.com":     {},
	"me.com":         {},
	"t-online.de":    {},
	"live.com":       {},
	"aol.com":        {},
	"protonmail.com": {},
	"proton.me":      {},
	"mail.com":       {},
}

// MergeHeuristicEntities adds a Person from the author header and, for
// non-public mail domains, a Company. Model-extracted entities with the
// same name win.
func MergeHeuristicEntities(entities []types.ExtractedEntity, authorName, authorEmail string) []types.ExtractedEntity {
	heuristic := HeuristicEntities(authorName, authorEmail)
	if len(heuristic) == 0 {
		return entities
	}

	existing := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		existing[strings.ToLower(e.Name)] = struct{}{}
	}

	for _, h := range heuristic {
		if _, ok := existing[strings.ToLower(h.Name)]; !ok {
			entities = append(entities, h)
		}
	}
	return entities
}

// HeuristicEntities derives Person and Company entities from an author
// email header without any model call.
func HeuristicEntities(authorName, authorEmail string) []types.ExtractedEntity {
	if authorEmail == "" || !strings.Contains(authorEmail, "@") {
		return nil
	}

	local, domain, _ := strings.Cut(authorEmail, "@")
	domain = strings.ToLower(domain)

	name := authorName
	if name == "" {
		name = local
	}

	out := []types.ExtractedEntity{{
		Type:  "Person",
		Name:  name,
		Email: authorEmail,
	}}

	if _, public := ignoreDomains[domain]; !public && domain != "" {
		companyName, _, _ := strings.Cut(domain, ".")
		out = append(out, types.ExtractedEntity{
			Type:   "Company",
			Name:   capitalize(companyName),
			Domain: domain,
		})
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// truncate caps s at n bytes, narrowed to a rune boundary so a multi-byte
// character is never cut in half.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
