// Package pdf renders conversation transcripts for download.
package pdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/usecase"
)

// Exporter renders a conversation as an A4 PDF: title header, session
// metadata, then one block per message.
type Exporter struct{}

// NewExporter creates an Exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

var _ usecase.PDFExporter = (*Exporter)(nil)

// Render builds the PDF document for one conversation.
func (e *Exporter) Render(conv *domain.Conversation, messages []domain.Message) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Chat Export - %s", conv.Title), true)
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 15)
	doc.AddPage()

	doc.SetFont("Arial", "B", 16)
	doc.MultiCell(0, 9, "Quorial Chat Export", "", "C", false)
	doc.Ln(3)

	doc.SetFont("Arial", "", 11)
	doc.MultiCell(0, 6, fmt.Sprintf("Session: %s", conv.Title), "", "L", false)
	doc.MultiCell(0, 6, fmt.Sprintf("Created: %s", conv.CreatedAt.Format(time.RFC1123)), "", "L", false)
	doc.Ln(5)

	if len(messages) == 0 {
		doc.MultiCell(0, 6, "No messages in this chat session yet.", "", "L", false)
	}

	for _, msg := range messages {
		role := "You"
		if msg.Role == domain.RoleAssistant {
			role = "Quorial"
		}

		doc.SetFont("Arial", "B", 11)
		doc.MultiCell(0, 6, role, "", "L", false)
		doc.SetFont("Arial", "", 8)
		doc.SetTextColor(108, 117, 125)
		doc.MultiCell(0, 5, msg.CreatedAt.Format(time.RFC1123), "", "L", false)
		doc.SetTextColor(33, 37, 41)
		doc.SetFont("Arial", "", 11)
		doc.MultiCell(0, 6, messageBody(msg), "", "L", false)
		doc.Ln(4)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

// messageBody flattens an assistant message's structured answer into
// readable text; user messages pass through unchanged.
func messageBody(msg domain.Message) string {
	if msg.Role != domain.RoleAssistant {
		return msg.Content
	}

	var resp usecase.GenerationResponse
	if err := json.Unmarshal([]byte(msg.Content), &resp); err != nil {
		return msg.Content
	}

	var sb strings.Builder
	sb.WriteString(resp.Summary)
	if len(resp.Insights) > 0 {
		sb.WriteString("\n\nKey insights:")
		for _, insight := range resp.Insights {
			sb.WriteString("\n- " + insight)
		}
	}
	if len(resp.Gaps) > 0 {
		sb.WriteString("\n\nContext gaps:")
		for _, gap := range resp.Gaps {
			sb.WriteString("\n- " + gap)
		}
	}
	if len(resp.Sources) > 0 {
		sb.WriteString("\n\nSources:")
		for _, src := range resp.Sources {
			sb.WriteString(fmt.Sprintf("\n- %s (%s, score %.2f)", src.Title, src.URL, src.Score))
		}
	}
	return sb.String()
}
