package services

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrRefusal is returned when the model declined to answer.
	ErrRefusal = errors.New("model refused to process the document")
)

// contentGenerator is the part of *genai.GenerativeModel the services use.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// responseText concatenates the text parts of the first candidate, stripping
// markdown fences the model sometimes adds around JSON.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	text := strings.TrimSpace(b.String())
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func fileParts(refs []fileRef) []genai.Part {
	parts := make([]genai.Part, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, genai.FileData{MIMEType: r.mimeType, FileURI: r.uri})
	}
	return parts
}

type fileRef struct {
	uri      string
	mimeType string
}
