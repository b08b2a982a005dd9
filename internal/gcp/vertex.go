package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/autoextract/internal/models"
)

// --- Extractor Model Prompts ---
const ExtractorSystemPrompt = "You are an accounting data extraction engine. You read invoices and purchase orders and return their contents as structured JSON. You never invent values that are not present in the document."
const ExtractorUserPrompt = `You will be provided with one or more documents (invoices, purchase orders or spreadsheets).

Extract every invoice line, product and customer they contain and return a single JSON object with exactly three keys:

- "invoices": an array of objects with keys "invoiceId", "serialNumber", "customerId", "customerName", "productId", "productName", "quantity", "tax", "totalAmount", "date", "currency".
- "products": an array of objects with keys "productId", "productName", "quantity", "unitPrice", "tax", "priceWithTax", "discount", "currency".
- "customers": an array of objects with keys "customerId", "customerName", "phoneNumber", "totalPurchaseAmount", "currency".

Rules:
1.  Identifiers: invoices use "INV-" followed by the document's invoice number, products use "PROD-" followed by a short code, customers use "CUST-" followed by a short code. Every invoice's "productId" and "customerId" must match an entry in "products" and "customers".
2.  Numbers: "quantity", "tax", "totalAmount", "unitPrice", "priceWithTax", "discount" and "totalPurchaseAmount" are JSON numbers without currency symbols or thousands separators.
3.  Dates: "date" is ISO 8601 (YYYY-MM-DD).
4.  Currency: "currency" is the ISO 4217 code (e.g. "USD", "EUR", "INR").
5.  Missing values: if a value does not appear in the document, use null. Never guess.

Return ONLY the JSON object. Do not include any text before or after it.`

// --- Classifier Model Prompts ---
const ClassifierSystemPrompt = "You are a document triage tool for an accounts-receivable inbox. You decide whether a document is a purchase order or invoice that should be processed."
const ClassifierUserPrompt = `Look at the provided document and decide whether it is a purchase order or an invoice requesting goods or payment.

Return a JSON object with exactly two keys:
- "isPurchaseOrder": true if the document is a purchase order or invoice, false otherwise (newsletters, receipts for personal purchases, signatures, logos, unrelated attachments).
- "reason": one short sentence explaining the decision.`

// Prompts maps prompt identifiers accepted by the extraction endpoint to the
// user prompt sent with the documents.
var Prompts = map[string]string{
	models.PromptInvoiceExtraction:           ExtractorUserPrompt,
	models.PromptPurchaseOrderClassification: ClassifierUserPrompt,
}

// VertexClient holds all pre-configured generative models for our app.
type VertexClient struct {
	ExtractorModel  *genai.GenerativeModel
	ClassifierModel *genai.GenerativeModel
	baseClient      *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// --- Configure the extractor model ---
	extractorModel := baseClient.GenerativeModel(modelName)
	extractorModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ExtractorSystemPrompt)},
	}
	extractorModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	// --- Configure the classifier model ---
	classifierModel := baseClient.GenerativeModel(modelName)
	classifierModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ClassifierSystemPrompt)},
	}
	classifierModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"isPurchaseOrder": {Type: genai.TypeBoolean},
				"reason":          {Type: genai.TypeString},
			},
			Required: []string{"isPurchaseOrder", "reason"},
		},
	}

	return &VertexClient{
		ExtractorModel:  extractorModel,
		ClassifierModel: classifierModel,
		baseClient:      baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
