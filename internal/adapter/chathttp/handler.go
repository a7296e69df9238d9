// Package chathttp exposes the chat pipeline to the surrounding web layer.
// Authentication is that layer's concern: requests arrive with the caller's
// user ID in the X-User-ID header, and handlers only enforce conversation
// ownership.
package chathttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/usecase"
)

const userIDHeader = "X-User-ID"

type Handler struct {
	answerUsecase usecase.AnswerUsecase
	convUsecase   usecase.ConversationUsecase

	// defaultLanguage restricts retrieval when the request names no language.
	// Empty means search the whole corpus.
	defaultLanguage string
}

func NewHandler(answerUsecase usecase.AnswerUsecase, convUsecase usecase.ConversationUsecase, defaultLanguage string) *Handler {
	return &Handler{
		answerUsecase:   answerUsecase,
		convUsecase:     convUsecase,
		defaultLanguage: defaultLanguage,
	}
}

// RegisterRoutes mounts all chat endpoints on the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/v1/chat")
	g.POST("/conversations", h.CreateConversation)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:id/messages", h.ListMessages)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.PUT("/conversations/:id/title", h.RenameConversation)
	g.DELETE("/conversations/:id", h.DeleteConversation)
	g.GET("/conversations/:id/export", h.ExportConversation)
}

type conversationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type createConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

type sendMessageResponse struct {
	UserMessage        string                      `json:"user_message"`
	Answer             *usecase.GenerationResponse `json:"answer"`
	SessionTitle       string                      `json:"session_title,omitempty"`
	Degraded           bool                        `json:"degraded,omitempty"`
	PersistenceWarning string                      `json:"persistence_warning,omitempty"`
}

// Create a new conversation
// (POST /v1/chat/conversations)
func (h *Handler) CreateConversation(ctx echo.Context) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	var req createConversationRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	conv, err := h.convUsecase.Create(ctx.Request().Context(), userID, req.Title)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, toConversationResponse(*conv))
}

// List the caller's conversations
// (GET /v1/chat/conversations)
func (h *Handler) ListConversations(ctx echo.Context) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	convs, err := h.convUsecase.List(ctx.Request().Context(), userID)
	if err != nil {
		return writeError(ctx, err)
	}

	out := make([]conversationResponse, 0, len(convs))
	for _, conv := range convs {
		out = append(out, toConversationResponse(conv))
	}
	return ctx.JSON(http.StatusOK, out)
}

// List the messages of one conversation
// (GET /v1/chat/conversations/:id/messages)
func (h *Handler) ListMessages(ctx echo.Context) error {
	userID, convID, err := callerAndConversation(ctx)
	if err != nil {
		return err
	}

	msgs, err := h.convUsecase.Messages(ctx.Request().Context(), userID, convID)
	if err != nil {
		return writeError(ctx, err)
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageResponse{
			ID:        msg.ID.String(),
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return ctx.JSON(http.StatusOK, out)
}

// Run one chat turn
// (POST /v1/chat/conversations/:id/messages)
func (h *Handler) SendMessage(ctx echo.Context) error {
	userID, convID, err := callerAndConversation(ctx)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	language := req.Language
	if language == "" {
		language = h.defaultLanguage
	}

	output, err := h.answerUsecase.Execute(ctx.Request().Context(), usecase.AnswerInput{
		UserID:         userID,
		ConversationID: convID,
		Query:          req.Message,
		Language:       language,
	})
	if err != nil {
		return writeError(ctx, err)
	}

	resp := sendMessageResponse{
		UserMessage:  req.Message,
		Answer:       output.Response,
		SessionTitle: output.ConversationTitle,
		Degraded:     output.Degraded,
	}
	if output.PersistenceErr != nil {
		resp.PersistenceWarning = output.PersistenceErr.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}

// Rename a conversation
// (PUT /v1/chat/conversations/:id/title)
func (h *Handler) RenameConversation(ctx echo.Context) error {
	userID, convID, err := callerAndConversation(ctx)
	if err != nil {
		return err
	}

	var req createConversationRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.convUsecase.Rename(ctx.Request().Context(), userID, convID, req.Title); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"title": req.Title})
}

// Delete a conversation and its messages
// (DELETE /v1/chat/conversations/:id)
func (h *Handler) DeleteConversation(ctx echo.Context) error {
	userID, convID, err := callerAndConversation(ctx)
	if err != nil {
		return err
	}

	if err := h.convUsecase.Delete(ctx.Request().Context(), userID, convID); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Export a conversation as PDF
// (GET /v1/chat/conversations/:id/export)
func (h *Handler) ExportConversation(ctx echo.Context) error {
	userID, convID, err := callerAndConversation(ctx)
	if err != nil {
		return err
	}

	data, filename, err := h.convUsecase.ExportPDF(ctx.Request().Context(), userID, convID)
	if err != nil {
		return writeError(ctx, err)
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "application/pdf", data)
}

func toConversationResponse(conv domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:        conv.ID.String(),
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}

func callerID(ctx echo.Context) (string, error) {
	userID := ctx.Request().Header.Get(userIDHeader)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing "+userIDHeader+" header")
	}
	return userID, nil
}

func callerAndConversation(ctx echo.Context) (string, uuid.UUID, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", uuid.Nil, err
	}
	convID, perr := uuid.Parse(ctx.Param("id"))
	if perr != nil {
		return "", uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
	}
	return userID, convID, nil
}

// writeError maps a classified pipeline failure to an HTTP status carrying
// enough detail for the caller to tell retryable from caller-fault from
// misconfiguration.
func writeError(ctx echo.Context, err error) error {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindInvalidArgument:
		status = http.StatusBadRequest
	case domain.KindConversationNotFound:
		status = http.StatusNotFound
	case domain.KindGenerationTimeout:
		status = http.StatusGatewayTimeout
	case domain.KindGenerationUnavailable, domain.KindGenerationParseError, domain.KindGenerationAuthError:
		status = http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		return err
	}

	body := map[string]interface{}{"error": err.Error()}
	if kind != "" {
		body["kind"] = string(kind)
		body["retryable"] = domain.Retryable(kind)
	}
	return ctx.JSON(status, body)
}
