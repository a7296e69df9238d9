package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/ingest"
)

var (
	chunkIn  string
	chunkOut string
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Cut cleaned articles into retrieval windows",
	Long: `Read cleaned articles and cut each body into overlapping windows at
sentence boundaries. The output file feeds the upload step.`,
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().StringVar(&chunkIn, "in", "", "input JSON file of cleaned articles (required)")
	chunkCmd.Flags().StringVar(&chunkOut, "out", "", "output JSON file of chunked articles (required)")
	_ = chunkCmd.MarkFlagRequired("in")
	_ = chunkCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	var cleaned []ingest.CleanedArticle
	if err := readJSONFile(chunkIn, &cleaned); err != nil {
		return err
	}

	chunker := domain.NewChunker()
	chunked, err := ingest.ChunkArticles(chunker, cleaned)
	if err != nil {
		return err
	}

	total := 0
	for _, article := range chunked {
		total += len(article.Chunks)
	}

	if err := writeJSONFile(chunkOut, chunked); err != nil {
		return err
	}

	fmt.Printf("Chunked %d articles into %d chunks (chunker %s) -> %s\n",
		len(chunked), total, chunker.Version(), chunkOut)
	return nil
}
