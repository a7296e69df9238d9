package pdf_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/adapter/pdf"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

func TestExporter_Render(t *testing.T) {
	exporter := pdf.NewExporter()
	convID := uuid.New()
	conv := &domain.Conversation{
		ID:        convID,
		UserID:    "user-1",
		Title:     "EU migration pact",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	messages := []domain.Message{
		{
			ID:             uuid.New(),
			ConversationID: convID,
			Role:           domain.RoleUser,
			Content:        "What changed in the pact?",
			CreatedAt:      conv.CreatedAt,
		},
		{
			ID:             uuid.New(),
			ConversationID: convID,
			Role:           domain.RoleAssistant,
			Content:        `{"summary":"The pact was agreed.","insights":["Shared duties."],"gaps":[],"sources":[{"chunk_id":"x","title":"EU pact","url":"http://example.com","score":0.9}]}`,
			CreatedAt:      conv.CreatedAt.Add(2 * time.Second),
		},
	}

	data, err := exporter.Render(conv, messages)
	assert.NoError(t, err)
	assert.True(t, len(data) > 500)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestExporter_RenderEmptyConversation(t *testing.T) {
	exporter := pdf.NewExporter()
	conv := &domain.Conversation{
		ID:        uuid.New(),
		Title:     "New Chat",
		CreatedAt: time.Now(),
	}

	data, err := exporter.Render(conv, nil)
	assert.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestExporter_MalformedAssistantContentPassesThrough(t *testing.T) {
	exporter := pdf.NewExporter()
	convID := uuid.New()
	conv := &domain.Conversation{ID: convID, Title: "t", CreatedAt: time.Now()}
	messages := []domain.Message{
		{
			ID:             uuid.New(),
			ConversationID: convID,
			Role:           domain.RoleAssistant,
			Content:        "not json at all",
			CreatedAt:      time.Now(),
		},
	}

	data, err := exporter.Render(conv, messages)
	assert.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}
