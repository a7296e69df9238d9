package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

// RetrieveContextInput defines the input parameters for RetrieveContext.
type RetrieveContextInput struct {
	Query    string
	K        int
	Language string // optional ISO 639-1 filter, empty = all languages
}

// RetrieveContextOutput defines the output for RetrieveContext.
type RetrieveContextOutput struct {
	Hits []domain.RetrievalHit
}

// RetrieveContextUsecase embeds a query and returns the most relevant corpus
// chunks. Read-only; failures of the corpus store are classified as
// RetrievalUnavailable so the orchestrator can degrade instead of aborting.
type RetrieveContextUsecase interface {
	Execute(ctx context.Context, input RetrieveContextInput) (*RetrieveContextOutput, error)
}

type retrieveContextUsecase struct {
	corpus       domain.CorpusRepository
	encoder      domain.VectorEncoder
	windowRadius int
	logger       *slog.Logger
}

// RetrieveOption configures optional retrieval behaviour.
type RetrieveOption func(*retrieveContextUsecase)

// WithWindowExpansion widens each primary hit into a window of up to radius
// neighbouring chunks on either side within the same article, so generation
// sees the matched passage in its surrounding text. radius <= 0 disables
// expansion.
func WithWindowExpansion(radius int) RetrieveOption {
	return func(u *retrieveContextUsecase) {
		u.windowRadius = radius
	}
}

// NewRetrieveContextUsecase creates a new RetrieveContextUsecase.
func NewRetrieveContextUsecase(
	corpus domain.CorpusRepository,
	encoder domain.VectorEncoder,
	logger *slog.Logger,
	opts ...RetrieveOption,
) RetrieveContextUsecase {
	u := &retrieveContextUsecase{
		corpus:  corpus,
		encoder: encoder,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *retrieveContextUsecase) Execute(ctx context.Context, input RetrieveContextInput) (*RetrieveContextOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.NewError(domain.KindInvalidArgument, "query is empty")
	}
	if input.K <= 0 {
		return nil, domain.NewError(domain.KindInvalidArgument, "k must be a positive integer, got %d", input.K)
	}

	embeddings, err := u.encoder.Encode(ctx, []string{input.Query})
	if err != nil {
		return nil, domain.WrapError(domain.KindRetrievalUnavailable, "failed to encode query", err)
	}
	if len(embeddings) != 1 {
		return nil, domain.NewError(domain.KindRetrievalUnavailable, "expected 1 embedding, got %d", len(embeddings))
	}

	hits, err := u.corpus.Search(ctx, embeddings[0], input.K, input.Language)
	if err != nil {
		return nil, domain.WrapError(domain.KindRetrievalUnavailable, "failed to search corpus", err)
	}
	if len(hits) == 0 {
		// An empty result on a bounded nearest-neighbour search means the
		// corpus itself is empty (or fully filtered out).
		return nil, domain.NewError(domain.KindRetrievalUnavailable, "corpus returned no chunks")
	}

	hits = u.expandWindows(ctx, hits)

	u.logger.Debug("context_retrieved",
		slog.Int("hit_count", len(hits)),
		slog.String("encoder", u.encoder.Version()),
	)

	return &RetrieveContextOutput{Hits: hits}, nil
}

// expandWindows replaces each hit's content with the concatenation of its
// surrounding chunks in ordinal order. The hit keeps the primary chunk's
// identity, metadata and score, so downstream source attribution still points
// at the matched chunk. A failed or single-chunk window leaves the hit as is.
func (u *retrieveContextUsecase) expandWindows(ctx context.Context, hits []domain.RetrievalHit) []domain.RetrievalHit {
	if u.windowRadius <= 0 {
		return hits
	}

	for i := range hits {
		primary := hits[i].Chunk
		window, err := u.corpus.WindowAround(ctx, primary.ArticleID, primary.Ordinal, u.windowRadius)
		if err != nil {
			u.logger.Warn("window_expansion_failed",
				slog.String("article_id", primary.ArticleID),
				slog.Int("ordinal", primary.Ordinal),
				slog.Any("error", err),
			)
			continue
		}
		if len(window) <= 1 {
			continue
		}
		parts := make([]string, len(window))
		for j, c := range window {
			parts[j] = c.Content
		}
		hits[i].Chunk.Content = strings.Join(parts, "\n\n")
	}
	return hits
}
