package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/invoice-scanner/internal/invoice"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"

	return &Gemini{
		client:  client,
		model:   model,
		timeout: 60 * time.Second,
	}, nil
}

// ScanInvoice analyzes an invoice and extracts its fields
func (g *Gemini) ScanInvoice(ctx context.Context, doc Document) (invoice.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	input, err := prepareDocument(doc)
	if err != nil {
		return invoice.Record{}, err
	}

	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
	var parts []genai.Part
	if input.image != nil {
		parts = append(parts, genai.ImageData("png", input.image))
	}
	if input.text != "" {
		parts = append(parts, genai.Text("Invoice text:\n"+input.text))
	}
	parts = append(parts, genai.Text(invoiceScanPrompt))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return invoice.Record{}, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return invoice.Record{}, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	record, err := parseInvoiceJSON(responseText.String())
	if err != nil {
		return invoice.Record{}, fmt.Errorf("parsing invoice data: %w", err)
	}

	return record, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
