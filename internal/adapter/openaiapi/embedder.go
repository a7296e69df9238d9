package openaiapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

// maxEmbedBatch is the provider-side limit on inputs per embedding request.
const maxEmbedBatch = 100

// Embedder generates embeddings through the hosted embeddings endpoint.
// A shared rate limiter keeps bulk ingestion under the provider's quota.
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	limiter   *rate.Limiter
}

// NewEmbedder constructs an embedder. requestsPerSecond <= 0 disables rate
// limiting.
func NewEmbedder(apiKey, baseURL, model string, dimension int, requestsPerSecond float64, httpClient *http.Client) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &Embedder{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
		limiter:   limiter,
	}, nil
}

// Encode embeds the given texts, preserving input order.
func (e *Embedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	if len(texts) > maxEmbedBatch {
		return nil, fmt.Errorf("batch size %d exceeds maximum of %d", len(texts), maxEmbedBatch)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vector[j] = float32(v)
		}
		embeddings[i] = vector
	}

	return embeddings, nil
}

// Dimension returns the embedding vector size.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Version returns the wrapped model name.
func (e *Embedder) Version() string {
	return e.model
}

var _ domain.VectorEncoder = (*Embedder)(nil)
