package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

type corpusRepository struct {
	pool *pgxpool.Pool
}

// NewCorpusRepository creates a pgvector-backed CorpusRepository.
func NewCorpusRepository(pool *pgxpool.Pool) domain.CorpusRepository {
	return &corpusRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *corpusRepository) getExecutor(ctx context.Context) dbExecutor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Search runs a cosine nearest-neighbour query. The score is 1 - distance so
// higher means more relevant; the ordinal/id tie-break keeps repeated calls
// on unchanged data stable.
func (r *corpusRepository) Search(ctx context.Context, queryVector []float32, k int, language string) ([]domain.RetrievalHit, error) {
	query := `
		SELECT id, article_id, ordinal, title, url, language, summary, content, created_at,
		       1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE ($2 = '' OR language = $2)
		ORDER BY embedding <=> $1 ASC, ordinal ASC, id ASC
		LIMIT $3
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(queryVector), language, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var hits []domain.RetrievalHit
	for rows.Next() {
		var hit domain.RetrievalHit
		c := &hit.Chunk
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Ordinal, &c.Title, &c.URL, &c.Language, &c.Summary, &c.Content, &c.CreatedAt, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

// WindowAround fetches the neighbouring chunks of one article so a primary
// hit can be widened into its surrounding text. The BETWEEN range tolerates
// gaps at article boundaries; ordinals below zero simply match nothing.
func (r *corpusRepository) WindowAround(ctx context.Context, articleID string, center, radius int) ([]domain.Chunk, error) {
	query := `
		SELECT id, article_id, ordinal, title, url, language, summary, content, created_at
		FROM chunks
		WHERE article_id = $1 AND ordinal BETWEEN $2 AND $3
		ORDER BY ordinal ASC
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, articleID, center-radius, center+radius)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunk window: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Ordinal, &c.Title, &c.URL, &c.Language, &c.Summary, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan window chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}

func (r *corpusRepository) BulkInsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		rows[i] = []interface{}{
			chunk.ID,
			chunk.ArticleID,
			chunk.Ordinal,
			chunk.Title,
			chunk.URL,
			chunk.Language,
			chunk.Summary,
			chunk.Content,
			chunk.Embedding,
			chunk.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"chunks"},
		[]string{"id", "article_id", "ordinal", "title", "url", "language", "summary", "content", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}

	return nil
}

func (r *corpusRepository) Truncate(ctx context.Context) error {
	if _, err := r.getExecutor(ctx).Exec(ctx, `TRUNCATE chunks`); err != nil {
		return fmt.Errorf("failed to truncate chunks: %w", err)
	}
	return nil
}

func (r *corpusRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.getExecutor(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
