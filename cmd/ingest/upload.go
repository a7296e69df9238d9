package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/adapter/openaiapi"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/adapter/repository"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/infra"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/infra/config"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/infra/httpclient"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/ingest"
)

var (
	uploadIn      string
	uploadRebuild bool
	uploadRPS     float64
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Embed chunked articles and write them to the corpus",
	Long: `Read chunked articles, embed every chunk through the configured
embedding endpoint and bulk-insert the result into the corpus database.

With --rebuild the corpus is truncated first, so the upload replaces it
wholesale. Connection and API settings come from the environment, the
same variables the server reads.`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadIn, "in", "", "input JSON file of chunked articles (required)")
	uploadCmd.Flags().BoolVar(&uploadRebuild, "rebuild", false, "truncate the corpus before uploading")
	uploadCmd.Flags().Float64Var(&uploadRPS, "rps", 2, "embedding requests per second (0 = unlimited)")
	_ = uploadCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	var chunked []ingest.ChunkedArticle
	if err := readJSONFile(uploadIn, &chunked); err != nil {
		return err
	}

	cfg := config.Load()
	ctx := cmd.Context()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := infra.NewPostgresDB(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer pool.Close()

	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.LLMTimeout) * time.Second)
	encoder, err := openaiapi.NewEmbedder(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDim, uploadRPS, embedderHTTP)
	if err != nil {
		return err
	}

	corpusRepo := repository.NewCorpusRepository(pool)
	uploader := ingest.NewUploader(corpusRepo, encoder, logger)

	written, err := uploader.Upload(ctx, chunked, uploadRebuild)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	stored, err := corpusRepo.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded %d chunks; corpus now holds %d\n", written, stored)
	return nil
}
