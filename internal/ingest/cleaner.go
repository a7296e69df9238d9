// Package ingest prepares source articles for retrieval: stripping markup,
// cutting chunk windows and uploading embedded chunks into the corpus.
package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Article is a raw source document as exported from the content pipeline.
// Body may be HTML or plain text.
type Article struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Summary  string `json:"summary"`
	Body     string `json:"body"`
}

// CleanedArticle carries the same metadata with Body reduced to readable text.
type CleanedArticle struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Summary  string `json:"summary"`
	Body     string `json:"body"`
}

// Elements that never contribute article prose.
var strippedSelectors = []string{
	"script", "style", "noscript", "iframe", "form",
	"nav", "header", "footer", "aside", "figure", "svg",
}

type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Clean strips markup and boilerplate elements from the article body and
// collapses whitespace. Plain-text bodies pass through with whitespace
// normalization only.
func (c *Cleaner) Clean(article Article) (CleanedArticle, error) {
	out := CleanedArticle{
		ID:       article.ID,
		Title:    strings.TrimSpace(article.Title),
		URL:      strings.TrimSpace(article.URL),
		Language: strings.TrimSpace(article.Language),
		Summary:  collapseWhitespace(article.Summary),
	}
	if out.ID == "" {
		return CleanedArticle{}, fmt.Errorf("article has no id")
	}

	body := article.Body
	if looksLikeHTML(body) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			return CleanedArticle{}, fmt.Errorf("parse article %s: %w", article.ID, err)
		}
		doc.Find(strings.Join(strippedSelectors, ", ")).Remove()
		body = doc.Find("body").Text()
		if strings.TrimSpace(body) == "" {
			body = doc.Text()
		}
	}

	out.Body = collapseWhitespace(body)
	if out.Body == "" {
		return CleanedArticle{}, fmt.Errorf("article %s has no body text", article.ID)
	}
	return out, nil
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "<") && strings.Contains(s, ">")
}

// collapseWhitespace folds runs of whitespace into single spaces while
// keeping paragraph breaks as single newlines.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
