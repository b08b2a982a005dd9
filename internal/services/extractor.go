package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/autoextract/internal/models"
)

// ErrUnknownPrompt is returned for a prompt identifier with no prompt text.
var ErrUnknownPrompt = errors.New("unknown prompt identifier")

// Extractor sends documents to Gemini and parses the structured entities it
// returns.
type Extractor struct {
	model   contentGenerator
	prompts map[string]string
}

// NewExtractor wraps a model configured for JSON output. prompts maps the
// identifiers callers send to the prompt text.
func NewExtractor(model contentGenerator, prompts map[string]string) *Extractor {
	return &Extractor{model: model, prompts: prompts}
}

// Extract runs the prompt named by req.Prompt over req.Files.
func (e *Extractor) Extract(ctx context.Context, req models.ExtractRequest) (*models.ExtractionResult, error) {
	logCtx := slog.With("prompt", req.Prompt, "fileCount", len(req.Files))

	prompt, ok := e.prompts[req.Prompt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrompt, req.Prompt)
	}
	if len(req.Files) == 0 {
		return nil, errors.New("no files to extract")
	}

	refs := make([]fileRef, 0, len(req.Files))
	for _, f := range req.Files {
		refs = append(refs, fileRef{uri: f.FileURI, mimeType: f.MimeType})
	}
	parts := append(fileParts(refs), genai.Text(prompt))

	logCtx.Info("Starting extraction.", "firstFileUri", req.Files[0].FileURI)
	resp, err := e.model.GenerateContent(ctx, parts...)
	if err != nil {
		logCtx.Error("Call to Vertex AI for extraction failed", "error", err)
		return nil, fmt.Errorf("failed to generate extraction from gemini: %w", err)
	}

	result, err := parseExtraction(responseText(resp))
	if err != nil {
		logCtx.Error("Failed to parse extraction response", "error", err)
		return nil, err
	}

	logCtx.Info("Extraction complete.",
		"invoices", len(result.Invoices),
		"products", len(result.Products),
		"customers", len(result.Customers),
	)
	return result, nil
}

// parseExtraction decodes the model's JSON. A bare object and one wrapped in
// {"result": ...} are both accepted.
func parseExtraction(text string) (*models.ExtractionResult, error) {
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var wrapped struct {
		Result *models.ExtractionResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && wrapped.Result != nil {
		return wrapped.Result, nil
	}

	var result models.ExtractionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		// Only text that is not a result can be a refusal.
		if isRefusal(text) {
			return nil, ErrRefusal
		}
		return nil, fmt.Errorf("failed to parse JSON from model: %w", err)
	}
	return &result, nil
}
