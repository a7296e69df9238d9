package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation groups the messages of one chat thread owned by a user.
type Conversation struct {
	ID        uuid.UUID
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single turn entry in a conversation. Messages are append-only.
// Assistant messages carry the serialized structured answer as content.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           Role
	Content        string
	CreatedAt      time.Time
}

const (
	titleMaxWords = 8
	titleMaxRunes = 60
)

// DeriveConversationTitle builds a concise conversation title from the first
// user message: at most 8 words, hard-capped at 60 characters so titles stay
// tidy in the sidebar.
func DeriveConversationTitle(message string) string {
	cleaned := strings.Join(strings.Fields(message), " ")
	if cleaned == "" {
		return "New Chat"
	}

	words := strings.Fields(cleaned)
	limit := titleMaxWords
	if len(words) < limit {
		limit = len(words)
	}
	snippet := strings.Join(words[:limit], " ")

	if runes := []rune(snippet); len(runes) > titleMaxRunes {
		snippet = strings.TrimRight(string(runes[:titleMaxRunes-3]), " ") + "..."
	} else if len(words) > titleMaxWords {
		snippet += "..."
	}

	return snippet
}
