package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one bounded span of article text stored with its embedding.
// Chunks are immutable once ingested; the corpus is only ever rebuilt wholesale.
type Chunk struct {
	ID        uuid.UUID
	ArticleID string
	Ordinal   int
	Title     string
	URL       string
	Language  string
	Summary   string
	Content   string
	Embedding pgvector.Vector
	CreatedAt time.Time
}

// RetrievalHit pairs a chunk with its similarity score for a single query.
// Scores are cosine similarities in [0,1], higher meaning more relevant.
type RetrievalHit struct {
	Chunk Chunk
	Score float32
}
