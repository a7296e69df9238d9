package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	Port       string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTimeout     int // seconds, per attempt
	EmbeddingModel string
	EmbeddingDim   int

	RetrieveK         int
	RetrieveWindow    int
	MaxContextChars   int
	DefaultLanguage   string
	PromptVersion     string
	AnswerCacheSize   int
	AnswerCacheTTLMin int
}

func Load() *Config {
	// Local development keeps secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	return &Config{
		Env:        getEnv("ENV", "development"),
		Port:       getEnv("PORT", "9020"),
		DBHost:     getEnv("DB_HOST", "chat-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "quorial_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "quorial_password"),
		DBName:     getEnv("DB_NAME", "quorial_db"),

		LLMAPIKey:      getSecret("MISTRAL_API_KEY", "MISTRAL_API_KEY_FILE", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.mistral.ai/v1"),
		LLMModel:       getEnv("LLM_MODEL", "mistral-small-latest"),
		LLMTimeout:     getEnvInt("LLM_TIMEOUT_SECONDS", 60),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "mistral-embed"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 1024),

		RetrieveK:         getEnvInt("RAG_RETRIEVE_K", 5),
		RetrieveWindow:    getEnvInt("RAG_RETRIEVE_WINDOW", 2),
		MaxContextChars:   getEnvInt("RAG_MAX_CONTEXT_CHARS", 12000),
		DefaultLanguage:   getEnv("RAG_DEFAULT_LANGUAGE", ""),
		PromptVersion:     getEnv("RAG_PROMPT_VERSION", "quorial-v1"),
		AnswerCacheSize:   getEnvInt("ANSWER_CACHE_SIZE", 128),
		AnswerCacheTTLMin: getEnvInt("ANSWER_CACHE_TTL_MINUTES", 10),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	// Containerized deployments mount secrets as files.
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
