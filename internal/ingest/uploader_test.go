package ingest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/ingest"
)

// fakeCorpus records writes; the pgx-backed implementation is exercised
// against a real database elsewhere.
type fakeCorpus struct {
	mu        sync.Mutex
	truncated bool
	inserted  []domain.Chunk
	insertErr error
}

func (f *fakeCorpus) Search(ctx context.Context, queryVector []float32, k int, language string) ([]domain.RetrievalHit, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCorpus) WindowAround(ctx context.Context, articleID string, center, radius int) ([]domain.Chunk, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCorpus) BulkInsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, chunks...)
	return nil
}

func (f *fakeCorpus) Truncate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.truncated = true
	return nil
}

func (f *fakeCorpus) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.inserted)), nil
}

// fakeEncoder returns one constant-dimension vector per input text.
type fakeEncoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEncoder) Version() string { return "fake" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChunkArticles(t *testing.T) {
	chunker := domain.NewChunker()
	long := strings.Repeat("Sentence number one goes here. ", 200)

	chunked, err := ingest.ChunkArticles(chunker, []ingest.CleanedArticle{
		{ID: "a-1", Title: "Long", Body: long},
		{ID: "a-2", Title: "Empty", Body: "   "},
		{ID: "a-3", Title: "Short", Body: "One sentence."},
	})
	assert.NoError(t, err)
	assert.Len(t, chunked, 2)
	assert.Equal(t, "a-1", chunked[0].ID)
	assert.Greater(t, len(chunked[0].Chunks), 1)
	assert.Equal(t, "a-3", chunked[1].ID)
	assert.Len(t, chunked[1].Chunks, 1)
}

func TestUploader_Upload(t *testing.T) {
	corpus := &fakeCorpus{}
	encoder := &fakeEncoder{}
	uploader := ingest.NewUploader(corpus, encoder, testLogger())

	articles := []ingest.ChunkedArticle{
		{ID: "a-1", Title: "First", URL: "http://a.example", Language: "en", Chunks: []string{"chunk one", "chunk two"}},
		{ID: "a-2", Title: "Second", Chunks: []string{"chunk three"}},
	}

	written, err := uploader.Upload(context.Background(), articles, false)
	assert.NoError(t, err)
	assert.Equal(t, 3, written)
	assert.False(t, corpus.truncated)
	assert.Len(t, corpus.inserted, 3)

	first := corpus.inserted[0]
	assert.Equal(t, "a-1", first.ArticleID)
	assert.Equal(t, 0, first.Ordinal)
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "chunk one", first.Content)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, first.Embedding.Slice())
}

func TestUploader_RebuildTruncatesFirst(t *testing.T) {
	corpus := &fakeCorpus{}
	uploader := ingest.NewUploader(corpus, &fakeEncoder{}, testLogger())

	_, err := uploader.Upload(context.Background(), []ingest.ChunkedArticle{
		{ID: "a-1", Chunks: []string{"chunk"}},
	}, true)
	assert.NoError(t, err)
	assert.True(t, corpus.truncated)
}

func TestUploader_BatchesLargeUploads(t *testing.T) {
	corpus := &fakeCorpus{}
	encoder := &fakeEncoder{}
	uploader := ingest.NewUploader(corpus, encoder, testLogger())

	chunks := make([]string, 250)
	for i := range chunks {
		chunks[i] = "chunk"
	}

	written, err := uploader.Upload(context.Background(), []ingest.ChunkedArticle{
		{ID: "a-1", Chunks: chunks},
	}, false)
	assert.NoError(t, err)
	assert.Equal(t, 250, written)
	// 250 chunks at 100 per request.
	assert.Equal(t, 3, encoder.calls)
}

func TestUploader_EncoderFailureAborts(t *testing.T) {
	corpus := &fakeCorpus{}
	encoder := &fakeEncoder{err: errors.New("quota exceeded")}
	uploader := ingest.NewUploader(corpus, encoder, testLogger())

	_, err := uploader.Upload(context.Background(), []ingest.ChunkedArticle{
		{ID: "a-1", Chunks: []string{"chunk"}},
	}, false)
	assert.Error(t, err)
	assert.Empty(t, corpus.inserted)
}

func TestUploader_EmptyInputNoWrites(t *testing.T) {
	corpus := &fakeCorpus{}
	uploader := ingest.NewUploader(corpus, &fakeEncoder{}, testLogger())

	written, err := uploader.Upload(context.Background(), nil, false)
	assert.NoError(t, err)
	assert.Zero(t, written)
	assert.Empty(t, corpus.inserted)
}
