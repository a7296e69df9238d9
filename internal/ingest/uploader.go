package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

const (
	// embedBatchSize bounds the number of texts sent per embedding request.
	embedBatchSize = 100
	// embedParallelism bounds concurrent embedding requests during upload.
	embedParallelism = 4
)

// ChunkedArticle is the chunk command's output: article metadata plus the
// cut windows, ready for embedding.
type ChunkedArticle struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Language string   `json:"language"`
	Summary  string   `json:"summary"`
	Chunks   []string `json:"chunks"`
}

// ChunkArticles cuts each cleaned article into windows with the given chunker.
// Articles whose body produces no chunks are skipped.
func ChunkArticles(chunker domain.Chunker, articles []CleanedArticle) ([]ChunkedArticle, error) {
	out := make([]ChunkedArticle, 0, len(articles))
	for _, article := range articles {
		cuts, err := chunker.Chunk(article.Body)
		if err != nil {
			return nil, err
		}
		if len(cuts) == 0 {
			continue
		}
		chunked := ChunkedArticle{
			ID:       article.ID,
			Title:    article.Title,
			URL:      article.URL,
			Language: article.Language,
			Summary:  article.Summary,
			Chunks:   make([]string, 0, len(cuts)),
		}
		for _, cut := range cuts {
			chunked.Chunks = append(chunked.Chunks, cut.Content)
		}
		out = append(out, chunked)
	}
	return out, nil
}

// Uploader embeds chunked articles and writes them to the corpus.
type Uploader struct {
	corpus  domain.CorpusRepository
	encoder domain.VectorEncoder
	logger  *slog.Logger
}

func NewUploader(corpus domain.CorpusRepository, encoder domain.VectorEncoder, logger *slog.Logger) *Uploader {
	return &Uploader{corpus: corpus, encoder: encoder, logger: logger}
}

// Upload embeds every chunk and bulk-inserts the result. When rebuild is
// true the corpus is truncated first so the upload replaces it wholesale.
// Returns the number of chunks written.
func (u *Uploader) Upload(ctx context.Context, articles []ChunkedArticle, rebuild bool) (int, error) {
	if rebuild {
		if err := u.corpus.Truncate(ctx); err != nil {
			return 0, err
		}
		u.logger.Info("corpus_truncated")
	}

	// Flatten so batches can span article boundaries.
	type slot struct {
		article int
		ordinal int
		text    string
	}
	var slots []slot
	for ai, article := range articles {
		for oi, text := range article.Chunks {
			slots = append(slots, slot{article: ai, ordinal: oi, text: text})
		}
	}
	if len(slots) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)
	for start := 0; start < len(slots); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(slots) {
			end = len(slots)
		}
		start, end := start, end
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, s := range slots[start:end] {
				texts = append(texts, s.text)
			}
			encoded, err := u.encoder.Encode(gctx, texts)
			if err != nil {
				return err
			}
			copy(vectors[start:end], encoded)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(slots))
	for i, s := range slots {
		article := articles[s.article]
		chunks = append(chunks, domain.Chunk{
			ID:        uuid.New(),
			ArticleID: article.ID,
			Ordinal:   s.ordinal,
			Title:     article.Title,
			URL:       article.URL,
			Language:  article.Language,
			Summary:   article.Summary,
			Content:   s.text,
			Embedding: pgvector.NewVector(vectors[i]),
			CreatedAt: now,
		})
	}

	if err := u.corpus.BulkInsertChunks(ctx, chunks); err != nil {
		return 0, err
	}

	u.logger.Info("chunks_uploaded",
		slog.Int("articles", len(articles)),
		slog.Int("chunks", len(chunks)),
		slog.String("encoder_version", u.encoder.Version()),
	)
	return len(chunks), nil
}
