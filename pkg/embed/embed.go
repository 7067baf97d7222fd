package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/contaixt/contaixt/pkg/log"
	"github.com/contaixt/contaixt/pkg/metrics"
)

// requestTimeout bounds each embedding API call.
const requestTimeout = 30 * time.Second

// Config holds embedding client settings.
type Config struct {
	APIKey    string
	Model     string
	Dim       int
	BatchSize int
}

// Client embeds text via the OpenAI embeddings API in fixed-size batches.
type Client struct {
	api   openai.Client
	model string
	dim   int
	batch int
}

// New creates an embedding client.
func New(cfg Config) *Client {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Client{
		api:   openai.NewClient(option.WithAPIKey(cfg.APIKey), option.WithRequestTimeout(requestTimeout)),
		model: cfg.Model,
		dim:   cfg.Dim,
		batch: batch,
	}
}

// EmbedTexts embeds texts in order, batching requests. The i-th vector in
// the result corresponds to the i-th input text.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batch {
		end := start + c.batch
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			Model: openai.EmbeddingModel(c.model),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch of %d texts: %w", len(batch), err)
		}
		metrics.EmbeddingBatches.Inc()

		vecs, err := batchVectors(resp.Data, len(batch), c.dim, start)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}

	logger := log.WithComponent("embed")
	logger.Debug().Int("texts", len(texts)).Msg("embedded texts")
	return out, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// batchVectors validates one API response batch and converts it. The
// response must return exactly one vector per input, each tagged with the
// input's position, so the i-th output always matches the i-th text.
func batchVectors(data []openai.Embedding, batchLen, dim, offset int) ([][]float32, error) {
	if len(data) != batchLen {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", batchLen, len(data))
	}

	out := make([][]float32, 0, batchLen)
	for i, d := range data {
		if int(d.Index) != i {
			return nil, fmt.Errorf("embedding order mismatch: position %d carries index %d", i, d.Index)
		}
		vec := toFloat32(d.Embedding)
		if dim > 0 && len(vec) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch for text %d: expected %d, got %d", offset+i, dim, len(vec))
		}
		out = append(out, vec)
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
