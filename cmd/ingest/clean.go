package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/ingest"
)

var (
	cleanIn  string
	cleanOut string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Strip markup and boilerplate from exported articles",
	Long: `Read a JSON array of raw articles, strip HTML markup and boilerplate
elements from each body, normalize whitespace and write the cleaned
articles out. Articles with an empty body after cleaning are dropped
with a warning.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanIn, "in", "", "input JSON file of raw articles (required)")
	cleanCmd.Flags().StringVar(&cleanOut, "out", "", "output JSON file of cleaned articles (required)")
	_ = cleanCmd.MarkFlagRequired("in")
	_ = cleanCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	var articles []ingest.Article
	if err := readJSONFile(cleanIn, &articles); err != nil {
		return err
	}

	cleaner := ingest.NewCleaner()
	cleaned := make([]ingest.CleanedArticle, 0, len(articles))
	dropped := 0
	for _, article := range articles {
		out, err := cleaner.Clean(article)
		if err != nil {
			logger.Warn("article_dropped", "article_id", article.ID, "error", err)
			dropped++
			continue
		}
		cleaned = append(cleaned, out)
	}

	if err := writeJSONFile(cleanOut, cleaned); err != nil {
		return err
	}

	fmt.Printf("Cleaned %d articles (%d dropped) -> %s\n", len(cleaned), dropped, cleanOut)
	return nil
}
