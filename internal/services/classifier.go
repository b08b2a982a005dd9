package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/autoextract/internal/gcp"
	"github.com/Lllllllleong/autoextract/internal/models"
)

// Classifier decides whether a document is a purchase order worth extracting.
type Classifier struct {
	model contentGenerator
}

func NewClassifier(model contentGenerator) *Classifier {
	return &Classifier{model: model}
}

// Classify asks the classifier model about the document at fileURI.
func (c *Classifier) Classify(ctx context.Context, fileURI, mimeType string) (*models.Classification, error) {
	logCtx := slog.With("fileUri", fileURI, "mimeType", mimeType)

	parts := append(fileParts([]fileRef{{uri: fileURI, mimeType: mimeType}}), genai.Text(gcp.ClassifierUserPrompt))
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		logCtx.Error("Call to Vertex AI for classification failed", "error", err)
		return nil, fmt.Errorf("failed to classify document with gemini: %w", err)
	}

	verdict, err := parseClassification(responseText(resp))
	if err != nil {
		logCtx.Error("Failed to parse classification response", "error", err)
		return nil, err
	}
	logCtx.Info("Document classified.", "isPurchaseOrder", verdict.IsPurchaseOrder, "reason", verdict.Reason)
	return verdict, nil
}

func parseClassification(text string) (*models.Classification, error) {
	if text == "" {
		return nil, ErrEmptyResponse
	}
	var verdict models.Classification
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse classification JSON: %w", err)
	}
	return &verdict, nil
}
