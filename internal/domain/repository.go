package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CorpusRepository is the read contract over the chunk corpus, plus the
// write operations the ingestion tooling needs. Reads are safe for
// concurrent use; writes only happen during out-of-band rebuilds.
type CorpusRepository interface {
	// Search performs a nearest-neighbour search and returns up to k hits
	// ordered by descending similarity. Ties are broken by chunk ordinal
	// and ID so repeated calls on unchanged data return the same order.
	// language: if non-empty, restrict hits to chunks in that language.
	Search(ctx context.Context, queryVector []float32, k int, language string) ([]RetrievalHit, error)

	// WindowAround returns the chunks of one article whose ordinal lies
	// within radius of center, ordered by ascending ordinal. The chunk at
	// center itself is included.
	WindowAround(ctx context.Context, articleID string, center, radius int) ([]Chunk, error)

	// BulkInsertChunks inserts chunks produced by ingestion.
	BulkInsertChunks(ctx context.Context, chunks []Chunk) error

	// Truncate removes all chunks ahead of a full rebuild.
	Truncate(ctx context.Context) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int64, error)
}

// ConversationRepository persists conversations and their append-only messages.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv *Conversation) error

	// GetConversation returns nil, nil if the conversation does not exist.
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)

	// ListConversations returns the user's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)

	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error

	// Touch bumps the conversation's updated_at timestamp.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	// DeleteConversation removes a conversation and its messages.
	DeleteConversation(ctx context.Context, id uuid.UUID) error

	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns all messages of a conversation in chronological order.
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)

	// CountMessages returns the number of messages in a conversation.
	CountMessages(ctx context.Context, conversationID uuid.UUID) (int64, error)
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
