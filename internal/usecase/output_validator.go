package usecase

import (
	"encoding/json"
	"strings"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

// GenerationResponse models the structured answer the format section enforces.
// It is also the serialized content of persisted assistant messages.
type GenerationResponse struct {
	Summary  string      `json:"summary"`
	Insights []string    `json:"insights"`
	Gaps     []string    `json:"gaps"`
	Sources  []SourceRef `json:"sources"`
}

// SourceRef points a response back to one of the chunks supplied in the
// generation request. Title, URL and Score are rewritten from retrieval
// metadata during validation and never trusted from the model.
type SourceRef struct {
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Score   float32 `json:"score"`
}

// OutputValidator ensures the model output follows the expected structure and
// only references chunks that were actually supplied.
type OutputValidator struct{}

// NewOutputValidator creates a validator instance (currently stateless).
func NewOutputValidator() OutputValidator {
	return OutputValidator{}
}

// Validate parses the raw model output and enforces the no-fabricated-sources
// invariant against the hits of the originating request. All failures are
// classified as GenerationParseError.
func (v OutputValidator) Validate(raw string, hits []domain.RetrievalHit) (*GenerationResponse, error) {
	trimmed := stripCodeFence(strings.TrimSpace(raw))
	if trimmed == "" {
		return nil, domain.NewError(domain.KindGenerationParseError, "model response is empty")
	}

	var resp GenerationResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return nil, domain.WrapError(domain.KindGenerationParseError, "failed to parse model response", err)
	}

	if strings.TrimSpace(resp.Summary) == "" {
		return nil, domain.NewError(domain.KindGenerationParseError, "missing summary in response")
	}

	if len(hits) == 0 {
		if len(resp.Gaps) == 0 {
			return nil, domain.NewError(domain.KindGenerationParseError, "gaps must mention the absence of supporting context")
		}
		resp.Sources = nil
		return &resp, nil
	}

	if len(resp.Sources) == 0 {
		return nil, domain.NewError(domain.KindGenerationParseError, "missing sources in response")
	}

	supplied := make(map[string]domain.RetrievalHit, len(hits))
	for _, hit := range hits {
		supplied[hit.Chunk.ID.String()] = hit
	}

	verified := make([]SourceRef, 0, len(resp.Sources))
	seen := make(map[string]struct{}, len(resp.Sources))
	for _, src := range resp.Sources {
		if src.ChunkID == "" {
			return nil, domain.NewError(domain.KindGenerationParseError, "source missing chunk_id")
		}
		hit, ok := supplied[src.ChunkID]
		if !ok {
			return nil, domain.NewError(domain.KindGenerationParseError, "source references unknown chunk %s", src.ChunkID)
		}
		if _, dup := seen[src.ChunkID]; dup {
			continue
		}
		seen[src.ChunkID] = struct{}{}
		verified = append(verified, SourceRef{
			ChunkID: src.ChunkID,
			Title:   hit.Chunk.Title,
			URL:     hit.Chunk.URL,
			Score:   hit.Score,
		})
	}
	resp.Sources = verified

	return &resp, nil
}

// stripCodeFence unwraps ```json fenced blocks some models emit around their
// structured output.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
