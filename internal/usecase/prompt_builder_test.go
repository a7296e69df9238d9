package usecase_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/usecase"
)

func TestXMLPromptBuilder_Deterministic(t *testing.T) {
	builder := usecase.NewXMLPromptBuilder("quorial-v1", 12000)
	hits := []domain.RetrievalHit{
		{Chunk: domain.Chunk{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Title: "A", URL: "http://a.example", Content: "First chunk."}, Score: 0.9},
		{Chunk: domain.Chunk{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Title: "B", URL: "http://b.example", Content: "Second chunk."}, Score: 0.8},
	}

	first, err := builder.Assemble("What happened?", hits)
	assert.NoError(t, err)
	second, err := builder.Assemble("What happened?", hits)
	assert.NoError(t, err)

	assert.Equal(t, first.Messages, second.Messages)
	assert.Len(t, first.Messages, 2)
	assert.Equal(t, "system", first.Messages[0].Role)
	assert.Equal(t, "user", first.Messages[1].Role)
}

func TestXMLPromptBuilder_ContainsDocuments(t *testing.T) {
	builder := usecase.NewXMLPromptBuilder("quorial-v1", 12000)
	chunkID := uuid.New()
	hits := []domain.RetrievalHit{
		{Chunk: domain.Chunk{ID: chunkID, Title: "Example", URL: "http://example.com", Content: "Chunk body."}, Score: 0.85},
	}

	request, err := builder.Assemble("query", hits)
	assert.NoError(t, err)

	user := request.Messages[1].Content
	assert.Contains(t, user, `<context version="quorial-v1">`)
	assert.Contains(t, user, "<chunk_id>"+chunkID.String()+"</chunk_id>")
	assert.Contains(t, user, "<score>0.850000</score>")
	assert.Contains(t, user, "<query>\nquery\n</query>")

	system := request.Messages[0].Content
	assert.Contains(t, system, "<instructions>")
	assert.Contains(t, system, "<format>")
	assert.Contains(t, system, `"sources"`)
}

func TestXMLPromptBuilder_EmptyHitsInstruction(t *testing.T) {
	builder := usecase.NewXMLPromptBuilder("quorial-v1", 12000)

	request, err := builder.Assemble("query", nil)
	assert.NoError(t, err)
	assert.Contains(t, request.Messages[0].Content, "No supporting context was retrieved")
	assert.Empty(t, request.Hits)
	assert.Zero(t, request.DroppedHits)
}

func TestXMLPromptBuilder_BudgetDropsLowRanked(t *testing.T) {
	// Each chunk is 100 runes; a 250-rune budget keeps the top two.
	body := strings.Repeat("x", 100)
	builder := usecase.NewXMLPromptBuilder("quorial-v1", 250)
	hits := []domain.RetrievalHit{
		{Chunk: domain.Chunk{ID: uuid.New(), Content: body}, Score: 0.9},
		{Chunk: domain.Chunk{ID: uuid.New(), Content: body}, Score: 0.8},
		{Chunk: domain.Chunk{ID: uuid.New(), Content: body}, Score: 0.7},
		{Chunk: domain.Chunk{ID: uuid.New(), Content: body}, Score: 0.6},
	}

	request, err := builder.Assemble("query", hits)
	assert.NoError(t, err)
	assert.Len(t, request.Hits, 2)
	assert.Equal(t, 2, request.DroppedHits)
	assert.Equal(t, float32(0.9), request.Hits[0].Score)
}

func TestXMLPromptBuilder_TopHitAlwaysKept(t *testing.T) {
	builder := usecase.NewXMLPromptBuilder("quorial-v1", 10)
	hits := []domain.RetrievalHit{
		{Chunk: domain.Chunk{ID: uuid.New(), Content: strings.Repeat("x", 500)}, Score: 0.9},
		{Chunk: domain.Chunk{ID: uuid.New(), Content: "short"}, Score: 0.8},
	}

	request, err := builder.Assemble("query", hits)
	assert.NoError(t, err)
	assert.Len(t, request.Hits, 1)
	assert.Equal(t, 1, request.DroppedHits)
}

func TestXMLPromptBuilder_EscapesMarkup(t *testing.T) {
	builder := usecase.NewXMLPromptBuilder("quorial-v1", 12000)
	hits := []domain.RetrievalHit{
		{Chunk: domain.Chunk{ID: uuid.New(), Title: "a<b>&c", Content: "text with <tags> & ampersands"}, Score: 0.5},
	}

	request, err := builder.Assemble("<query> & more", hits)
	assert.NoError(t, err)
	user := request.Messages[1].Content
	assert.NotContains(t, user, "<tags>")
	assert.Contains(t, user, "&lt;tags&gt;")
	assert.Contains(t, user, "&lt;query&gt; &amp; more")
}

func TestXMLPromptBuilder_RequiresPromptVersion(t *testing.T) {
	builder := usecase.NewXMLPromptBuilder("", 12000)

	_, err := builder.Assemble("query", nil)
	assert.Error(t, err)
}
