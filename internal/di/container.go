package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/adapter/openaiapi"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/adapter/pdf"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/adapter/repository"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/infra/config"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/infra/httpclient"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/usecase"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	CorpusRepo       domain.CorpusRepository
	ConversationRepo domain.ConversationRepository

	// Adapters
	Encoder   domain.VectorEncoder
	Generator domain.LLMClient

	// Usecases
	RetrieveUsecase     usecase.RetrieveContextUsecase
	AnswerUsecase       usecase.AnswerUsecase
	ConversationUsecase usecase.ConversationUsecase
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Repositories
	corpusRepo := repository.NewCorpusRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	// Shared HTTP clients with connection pooling. The generator client's
	// timeout sits above the per-attempt deadline so the adapter, not the
	// transport, decides when an attempt is dead.
	generatorHTTP := httpclient.NewPooledClient(time.Duration(cfg.LLMTimeout+5) * time.Second)
	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.LLMTimeout) * time.Second)

	// External clients
	encoder, err := openaiapi.NewEmbedder(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDim, 0, embedderHTTP)
	if err != nil {
		return nil, fmt.Errorf("wire embedder: %w", err)
	}
	generator, err := openaiapi.NewGenerator(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout, generatorHTTP, log)
	if err != nil {
		return nil, fmt.Errorf("wire generator: %w", err)
	}

	// Usecases
	retrieveUsecase := usecase.NewRetrieveContextUsecase(corpusRepo, encoder, log,
		usecase.WithWindowExpansion(cfg.RetrieveWindow))
	promptBuilder := usecase.NewXMLPromptBuilder(cfg.PromptVersion, cfg.MaxContextChars)
	answerUsecase := usecase.NewAnswerUsecase(
		retrieveUsecase, promptBuilder, generator, usecase.NewOutputValidator(),
		convRepo, txManager,
		cfg.RetrieveK, cfg.PromptVersion, log,
		usecase.WithAnswerCache(cfg.AnswerCacheSize, time.Duration(cfg.AnswerCacheTTLMin)*time.Minute),
	)
	conversationUsecase := usecase.NewConversationUsecase(convRepo, pdf.NewExporter())

	return &ApplicationComponents{
		CorpusRepo:          corpusRepo,
		ConversationRepo:    convRepo,
		Encoder:             encoder,
		Generator:           generator,
		RetrieveUsecase:     retrieveUsecase,
		AnswerUsecase:       answerUsecase,
		ConversationUsecase: conversationUsecase,
	}, nil
}
