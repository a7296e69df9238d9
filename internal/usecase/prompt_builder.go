package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

// GenerationRequest is one fully assembled generation call: the query, the
// hits that actually made it into the prompt, and the rendered messages.
type GenerationRequest struct {
	Query       string
	Hits        []domain.RetrievalHit
	Messages    []domain.LLMMessage
	DroppedHits int // hits cut from the low-ranked end to fit the context budget
}

// PromptBuilder merges a query and retrieved hits into a generation request.
// Assemble is a pure function: identical inputs yield identical messages.
type PromptBuilder interface {
	Assemble(query string, hits []domain.RetrievalHit) (*GenerationRequest, error)
}

// XMLPromptBuilder creates structured prompts that separate context,
// instructions, query, and output format.
type XMLPromptBuilder struct {
	promptVersion          string
	maxContextChars        int
	additionalInstructions []string
}

// NewXMLPromptBuilder creates a prompt builder with a total context budget in
// characters and optional extra instructions appended.
func NewXMLPromptBuilder(promptVersion string, maxContextChars int, additionalInstructions ...string) PromptBuilder {
	return &XMLPromptBuilder{
		promptVersion:          promptVersion,
		maxContextChars:        maxContextChars,
		additionalInstructions: additionalInstructions,
	}
}

// Assemble renders the messages for the chat API. When the combined hit text
// exceeds the context budget, hits are dropped from the lowest-ranked end
// first and the dropped count is recorded on the request.
func (b *XMLPromptBuilder) Assemble(query string, hits []domain.RetrievalHit) (*GenerationRequest, error) {
	if b.promptVersion == "" {
		return nil, fmt.Errorf("prompt version is required")
	}

	kept, dropped := b.fitBudget(hits)

	var sysSb strings.Builder
	sysSb.WriteString("<instructions>\n")

	instructions := []string{
		"You are a careful assistant answering questions about news articles on political and social issues.",
		"Use ONLY the information in the provided <context> documents.",
		"Respond with a single JSON object in exactly the format specified in <format>.",
		"\"summary\": a concise answer to the <query> grounded strictly in the context.",
		"\"insights\": the key individual findings, one finding per array entry.",
		"\"gaps\": aspects of the query the context does NOT cover; say explicitly what is missing.",
		"\"sources\": one entry per context document you actually used, carrying its chunk_id.",
		"Never invent sources: every chunk_id in \"sources\" must come from the <context>.",
		"If something is unclear or missing from the context, record it in \"gaps\" rather than guessing.",
	}
	if len(kept) == 0 {
		instructions = append(instructions,
			"No supporting context was retrieved for this query. State in \"gaps\" that no supporting context was found, leave \"sources\" empty, and answer only from that position.",
		)
	}

	for _, inst := range append(instructions, b.additionalInstructions...) {
		sysSb.WriteString("  <line>")
		sysSb.WriteString(escape(inst))
		sysSb.WriteString("</line>\n")
	}
	sysSb.WriteString("</instructions>\n\n")

	sysSb.WriteString("<format>\n")
	sysSb.WriteString("JSON: {\n")
	sysSb.WriteString("  \"summary\": \"...\",\n")
	sysSb.WriteString("  \"insights\": [\"...\"],\n")
	sysSb.WriteString("  \"gaps\": [\"...\"],\n")
	sysSb.WriteString("  \"sources\": [{\"chunk_id\":\"...\", \"title\":\"...\", \"url\":\"...\", \"score\":0.0}]\n")
	sysSb.WriteString("}\n")
	sysSb.WriteString("</format>\n")

	var userSb strings.Builder
	userSb.WriteString(fmt.Sprintf("<context version=%q>\n", escape(b.promptVersion)))
	for _, hit := range kept {
		userSb.WriteString("  <document>\n")
		userSb.WriteString("    <chunk_id>")
		userSb.WriteString(escape(hit.Chunk.ID.String()))
		userSb.WriteString("</chunk_id>\n")
		userSb.WriteString("    <title>")
		userSb.WriteString(escape(hit.Chunk.Title))
		userSb.WriteString("</title>\n")
		userSb.WriteString("    <url>")
		userSb.WriteString(escape(hit.Chunk.URL))
		userSb.WriteString("</url>\n")
		userSb.WriteString("    <score>")
		userSb.WriteString(fmt.Sprintf("%.6f", hit.Score))
		userSb.WriteString("</score>\n")
		userSb.WriteString("    <chunk_text>")
		userSb.WriteString(escape(hit.Chunk.Content))
		userSb.WriteString("</chunk_text>\n")
		userSb.WriteString("  </document>\n")
	}
	userSb.WriteString("</context>\n\n")

	userSb.WriteString("<query>\n")
	userSb.WriteString(escape(query))
	userSb.WriteString("\n</query>\n")

	return &GenerationRequest{
		Query:       query,
		Hits:        kept,
		DroppedHits: dropped,
		Messages: []domain.LLMMessage{
			{Role: "system", Content: sysSb.String()},
			{Role: "user", Content: userSb.String()},
		},
	}, nil
}

// fitBudget keeps hits in rank order while the combined chunk text stays
// within the context budget and reports how many were cut.
func (b *XMLPromptBuilder) fitBudget(hits []domain.RetrievalHit) ([]domain.RetrievalHit, int) {
	if b.maxContextChars <= 0 {
		return hits, 0
	}

	total := 0
	for i, hit := range hits {
		total += utf8.RuneCountInString(hit.Chunk.Content)
		if total > b.maxContextChars && i > 0 {
			// The top-ranked hit is always kept, even when it alone
			// exceeds the budget.
			return hits[:i], len(hits) - i
		}
	}
	return hits, 0
}

func escape(value string) string {
	s := strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}
