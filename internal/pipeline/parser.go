package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/qbo-converter/internal/domain"
	"github.com/dvloznov/qbo-converter/internal/normalize"
	"google.golang.org/genai"
)

// StatementParser reads transactions out of a PDF statement.
type StatementParser interface {
	ParseStatement(ctx context.Context, pdfBytes []byte) (domain.Batch, error)
}

// GeminiParser is the StatementParser backed by Gemini.
type GeminiParser struct {
	client *genai.Client
	model  string
	year   int
}

// NewGeminiParser creates a parser. It relies on the GOOGLE_API_KEY or Vertex
// AI environment the genai client reads by default.
func NewGeminiParser(ctx context.Context, model string, year int) (*GeminiParser, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiParser: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiParser{client: client, model: model, year: year}, nil
}

// ParseStatement sends the PDF to the model and normalizes its answer the
// same way CSV rows are normalized.
func (p *GeminiParser) ParseStatement(ctx context.Context, pdfBytes []byte) (domain.Batch, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildStatementPrompt()},
				{
					InlineData: &genai.Blob{
						MIMEType: ContentTypePDF,
						Data:     pdfBytes,
					},
				},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ParseStatement: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ParseStatement: empty response from model")
	}

	batch, _, err := transactionsFromModel(rawText, p.year)
	return batch, err
}

type modelTransaction struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
}

// transactionsFromModel decodes the model's JSON array. Entries with an
// unreadable date or amount are dropped and counted, like bad CSV rows.
func transactionsFromModel(rawText string, year int) (domain.Batch, int, error) {
	var items []modelTransaction
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &items); err != nil {
		return nil, 0, fmt.Errorf("unmarshal model output: %w", err)
	}

	batch := make(domain.Batch, 0, len(items))
	dropped := 0
	for _, item := range items {
		date, ok := normalize.ParseDate(item.Date, year)
		if !ok {
			dropped++
			continue
		}
		amount, ok := normalize.ParseAmount(item.Amount.String())
		if !ok || amount.IsZero() {
			dropped++
			continue
		}
		batch = append(batch, domain.Transaction{
			Date:        date,
			Description: strings.TrimSpace(item.Description),
			Amount:      amount,
		})
	}

	if len(batch) == 0 {
		return nil, dropped, domain.ErrNoTransactions
	}
	return batch.Sorted(), dropped, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost array if the model added prose around it.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
