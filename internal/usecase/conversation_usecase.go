package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

// PDFExporter renders a conversation transcript into a downloadable document.
type PDFExporter interface {
	Render(conv *domain.Conversation, messages []domain.Message) ([]byte, error)
}

// ConversationUsecase covers conversation lifecycle and export. Every
// operation verifies that the conversation belongs to the calling user.
type ConversationUsecase interface {
	Create(ctx context.Context, userID, title string) (*domain.Conversation, error)
	List(ctx context.Context, userID string) ([]domain.Conversation, error)
	Messages(ctx context.Context, userID string, id uuid.UUID) ([]domain.Message, error)
	Rename(ctx context.Context, userID string, id uuid.UUID, title string) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	// ExportPDF returns the rendered document and a suggested filename.
	ExportPDF(ctx context.Context, userID string, id uuid.UUID) ([]byte, string, error)
}

type conversationUsecase struct {
	repo     domain.ConversationRepository
	exporter PDFExporter
}

// NewConversationUsecase creates a ConversationUsecase.
func NewConversationUsecase(repo domain.ConversationRepository, exporter PDFExporter) ConversationUsecase {
	return &conversationUsecase{repo: repo, exporter: exporter}
}

func (u *conversationUsecase) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewError(domain.KindInvalidArgument, "user id is required")
	}
	if strings.TrimSpace(title) == "" {
		title = "New Chat"
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.repo.CreateConversation(ctx, conv); err != nil {
		return nil, domain.WrapError(domain.KindPersistenceError, "failed to create conversation", err)
	}
	return conv, nil
}

func (u *conversationUsecase) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewError(domain.KindInvalidArgument, "user id is required")
	}
	convs, err := u.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.KindPersistenceError, "failed to list conversations", err)
	}
	return convs, nil
}

func (u *conversationUsecase) Messages(ctx context.Context, userID string, id uuid.UUID) ([]domain.Message, error) {
	if _, err := u.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	msgs, err := u.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, domain.WrapError(domain.KindPersistenceError, "failed to list messages", err)
	}
	return msgs, nil
}

func (u *conversationUsecase) Rename(ctx context.Context, userID string, id uuid.UUID, title string) error {
	if strings.TrimSpace(title) == "" {
		return domain.NewError(domain.KindInvalidArgument, "title cannot be empty")
	}
	if _, err := u.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := u.repo.UpdateTitle(ctx, id, title); err != nil {
		return domain.WrapError(domain.KindPersistenceError, "failed to rename conversation", err)
	}
	return u.repo.Touch(ctx, id, time.Now().UTC())
}

func (u *conversationUsecase) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := u.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := u.repo.DeleteConversation(ctx, id); err != nil {
		return domain.WrapError(domain.KindPersistenceError, "failed to delete conversation", err)
	}
	return nil
}

func (u *conversationUsecase) ExportPDF(ctx context.Context, userID string, id uuid.UUID) ([]byte, string, error) {
	conv, err := u.owned(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	msgs, err := u.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, "", domain.WrapError(domain.KindPersistenceError, "failed to list messages", err)
	}

	data, err := u.exporter.Render(conv, msgs)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render conversation export: %w", err)
	}
	return data, fmt.Sprintf("chat-session-%s.pdf", id), nil
}

func (u *conversationUsecase) owned(ctx context.Context, userID string, id uuid.UUID) (*domain.Conversation, error) {
	conv, err := u.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, domain.WrapError(domain.KindPersistenceError, "failed to load conversation", err)
	}
	if conv == nil || conv.UserID != userID {
		return nil, domain.NewError(domain.KindConversationNotFound, "conversation %s not found", id)
	}
	return conv, nil
}
