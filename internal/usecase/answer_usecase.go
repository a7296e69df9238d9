package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

// AnswerInput encapsulates the parameters that drive one chat turn.
type AnswerInput struct {
	UserID         string
	ConversationID uuid.UUID
	Query          string
	Language       string
}

// AnswerOutput is the normalized result of a completed turn.
type AnswerOutput struct {
	Response          *GenerationResponse
	Hits              []domain.RetrievalHit
	ConversationTitle string // set when this turn named the conversation
	Degraded          bool   // retrieval was unavailable, answered without context
	DroppedHits       int
	PromptVersion     string
	// PersistenceErr flags a failed history write. The answer itself stays
	// valid; durability is best-effort relative to answer delivery.
	PersistenceErr error
}

// AnswerUsecase runs one turn through the pipeline:
// retrieve, assemble, generate, validate, persist.
type AnswerUsecase interface {
	Execute(ctx context.Context, input AnswerInput) (*AnswerOutput, error)
}

// turnState labels the stages of a turn for logging.
type turnState string

const (
	stateReceived   turnState = "received"
	stateRetrieving turnState = "retrieving"
	stateAssembling turnState = "assembling"
	stateGenerating turnState = "generating"
	stateValidating turnState = "validating"
	statePersisting turnState = "persisting"
	stateCompleted  turnState = "completed"
)

// cachedAnswer is one memoized generation result. Persistence is never
// cached; every turn appends its own messages.
type cachedAnswer struct {
	response    *GenerationResponse
	hits        []domain.RetrievalHit
	degraded    bool
	droppedHits int
}

type answerUsecase struct {
	retrieve      RetrieveContextUsecase
	promptBuilder PromptBuilder
	llmClient     domain.LLMClient
	validator     OutputValidator
	convRepo      domain.ConversationRepository
	txManager     domain.TransactionManager
	retrieveK     int
	promptVersion string
	logger        *slog.Logger
	cache         *expirable.LRU[string, cachedAnswer]
}

// AnswerOption customizes the answer usecase.
type AnswerOption func(*answerUsecase)

// WithAnswerCache memoizes generation results in a TTL-bounded LRU keyed by
// the normalized query.
func WithAnswerCache(size int, ttl time.Duration) AnswerOption {
	return func(u *answerUsecase) {
		if size > 0 {
			u.cache = expirable.NewLRU[string, cachedAnswer](size, nil, ttl)
		}
	}
}

// NewAnswerUsecase wires together the components needed to run a chat turn.
func NewAnswerUsecase(
	retrieve RetrieveContextUsecase,
	promptBuilder PromptBuilder,
	llmClient domain.LLMClient,
	validator OutputValidator,
	convRepo domain.ConversationRepository,
	txManager domain.TransactionManager,
	retrieveK int,
	promptVersion string,
	logger *slog.Logger,
	opts ...AnswerOption,
) AnswerUsecase {
	u := &answerUsecase{
		retrieve:      retrieve,
		promptBuilder: promptBuilder,
		llmClient:     llmClient,
		validator:     validator,
		convRepo:      convRepo,
		txManager:     txManager,
		retrieveK:     retrieveK,
		promptVersion: promptVersion,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *answerUsecase) Execute(ctx context.Context, input AnswerInput) (*AnswerOutput, error) {
	u.logTransition(stateReceived, input.ConversationID)

	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.NewError(domain.KindInvalidArgument, "query is required")
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, domain.NewError(domain.KindInvalidArgument, "user id is required")
	}

	conv, err := u.convRepo.GetConversation(ctx, input.ConversationID)
	if err != nil {
		return nil, domain.WrapError(domain.KindPersistenceError, "failed to load conversation", err)
	}
	if conv == nil || conv.UserID != input.UserID {
		return nil, domain.NewError(domain.KindConversationNotFound, "conversation %s not found", input.ConversationID)
	}

	result, err := u.generateAnswer(ctx, input)
	if err != nil {
		return nil, err
	}

	output := &AnswerOutput{
		Response:      result.response,
		Hits:          result.hits,
		Degraded:      result.degraded,
		DroppedHits:   result.droppedHits,
		PromptVersion: u.promptVersion,
	}

	// A cancelled turn must not be persisted.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.logTransition(statePersisting, input.ConversationID)
	title, persistErr := u.persistTurn(ctx, input, result.response)
	if persistErr != nil {
		u.logger.Warn("turn_persistence_failed",
			slog.String("conversation_id", input.ConversationID.String()),
			slog.String("error", persistErr.Error()),
		)
		output.PersistenceErr = domain.WrapError(domain.KindPersistenceError, "failed to persist turn", persistErr)
	}
	output.ConversationTitle = title

	u.logTransition(stateCompleted, input.ConversationID)
	return output, nil
}

// generateAnswer runs retrieve, assemble, generate, validate, consulting the
// answer cache first.
func (u *answerUsecase) generateAnswer(ctx context.Context, input AnswerInput) (*cachedAnswer, error) {
	cacheKey := cacheKeyFor(input.Query, input.Language)
	if u.cache != nil {
		if cached, ok := u.cache.Get(cacheKey); ok {
			u.logger.Debug("answer_cache_hit", slog.String("key", cacheKey))
			return &cached, nil
		}
	}

	u.logTransition(stateRetrieving, input.ConversationID)
	var hits []domain.RetrievalHit
	degraded := false
	retrieved, err := u.retrieve.Execute(ctx, RetrieveContextInput{
		Query:    input.Query,
		K:        u.retrieveK,
		Language: input.Language,
	})
	switch {
	case err == nil:
		hits = retrieved.Hits
	case domain.KindOf(err) == domain.KindRetrievalUnavailable:
		// Retrieval is best-effort: degrade to an empty context rather than
		// aborting the turn.
		u.logger.Warn("retrieval_degraded",
			slog.String("conversation_id", input.ConversationID.String()),
			slog.String("reason", err.Error()),
		)
		degraded = true
	default:
		return nil, err
	}

	u.logTransition(stateAssembling, input.ConversationID)
	request, err := u.promptBuilder.Assemble(input.Query, hits)
	if err != nil {
		return nil, domain.WrapError(domain.KindInvalidArgument, "failed to assemble prompt", err)
	}
	if request.DroppedHits > 0 {
		u.logger.Info("context_hits_dropped",
			slog.Int("dropped", request.DroppedHits),
			slog.Int("kept", len(request.Hits)),
		)
	}

	u.logTransition(stateGenerating, input.ConversationID)
	raw, err := u.llmClient.Generate(ctx, request.Messages)
	if err != nil {
		return nil, err
	}

	u.logTransition(stateValidating, input.ConversationID)
	response, err := u.validator.Validate(raw, request.Hits)
	if err != nil {
		if domain.KindOf(err) != domain.KindGenerationParseError {
			return nil, err
		}
		// One corrective retry with a stricter instruction, then surface.
		response, err = u.retryWithCorrection(ctx, request, err)
		if err != nil {
			return nil, err
		}
	}

	result := &cachedAnswer{
		response:    response,
		hits:        request.Hits,
		degraded:    degraded,
		droppedHits: request.DroppedHits,
	}
	if u.cache != nil {
		u.cache.Add(cacheKey, *result)
	}
	return result, nil
}

func (u *answerUsecase) retryWithCorrection(ctx context.Context, request *GenerationRequest, cause error) (*GenerationResponse, error) {
	u.logger.Warn("generation_output_rejected",
		slog.String("reason", cause.Error()),
		slog.String("model", u.llmClient.Version()),
	)

	corrective := append(append([]domain.LLMMessage{}, request.Messages...), domain.LLMMessage{
		Role: "system",
		Content: fmt.Sprintf(
			"Your previous response was rejected: %s. Respond again with ONLY the JSON object described in <format>, and reference exclusively chunk_ids present in <context>.",
			cause.Error(),
		),
	})

	raw, err := u.llmClient.Generate(ctx, corrective)
	if err != nil {
		return nil, err
	}
	return u.validator.Validate(raw, request.Hits)
}

// persistTurn appends the user query and the structured answer as two
// messages, in that order, and names the conversation on its first turn.
// Returns the derived title, if one was set.
func (u *answerUsecase) persistTurn(ctx context.Context, input AnswerInput, response *GenerationResponse) (string, error) {
	serialized, err := json.Marshal(response)
	if err != nil {
		return "", fmt.Errorf("failed to serialize response: %w", err)
	}

	existing, err := u.convRepo.CountMessages(ctx, input.ConversationID)
	if err != nil {
		return "", fmt.Errorf("failed to count messages: %w", err)
	}

	var title string
	err = u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		userAt := time.Now().UTC()
		if err := u.convRepo.AppendMessage(ctx, &domain.Message{
			ID:             uuid.New(),
			ConversationID: input.ConversationID,
			Role:           domain.RoleUser,
			Content:        input.Query,
			CreatedAt:      userAt,
		}); err != nil {
			return fmt.Errorf("failed to append user message: %w", err)
		}

		assistantAt := time.Now().UTC()
		if assistantAt.Before(userAt) {
			assistantAt = userAt
		}
		if err := u.convRepo.AppendMessage(ctx, &domain.Message{
			ID:             uuid.New(),
			ConversationID: input.ConversationID,
			Role:           domain.RoleAssistant,
			Content:        string(serialized),
			CreatedAt:      assistantAt,
		}); err != nil {
			return fmt.Errorf("failed to append assistant message: %w", err)
		}

		if existing == 0 {
			title = domain.DeriveConversationTitle(input.Query)
			if err := u.convRepo.UpdateTitle(ctx, input.ConversationID, title); err != nil {
				return fmt.Errorf("failed to set conversation title: %w", err)
			}
		}
		return u.convRepo.Touch(ctx, input.ConversationID, assistantAt)
	})
	if err != nil {
		return "", err
	}
	return title, nil
}

func (u *answerUsecase) logTransition(state turnState, conversationID uuid.UUID) {
	u.logger.Debug("turn_state",
		slog.String("state", string(state)),
		slog.String("conversation_id", conversationID.String()),
	)
}

func cacheKeyFor(query, language string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " ")) + "|" + language
}
