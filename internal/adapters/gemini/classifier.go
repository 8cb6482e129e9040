package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/supamail/supamail-gateway/internal/core"
	"github.com/supamail/supamail-gateway/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Classifier is an implementation of the core.Classifier interface using Google Gemini
type Classifier struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// classificationResponse represents the structured response from the LLM
type classificationResponse struct {
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

// NewClassifier creates a new Gemini classifier
func NewClassifier(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Classifier, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"

	return &Classifier{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are an email assistant. Analyze the email and return a JSON object with two fields:
- "summary": a 3-5 word summary suitable as a subject line prefix
- "category": one of "Personal", "Social", "Promotions", "Updates", "Transactional", "Spam"

Subject: %s

Body:
%s

Respond only with the JSON object and nothing else.`,
	}, nil
}

// Close closes the underlying Gemini client
func (c *Classifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify produces a summary and category for the given message
func (c *Classifier) Classify(ctx context.Context, subject, body string) (*core.Classification, error) {
	processedBody := c.textProcessor.ProcessBody(body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, subject, processedBody)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	responseText := sb.String()

	parsed, err := parseClassification(responseText)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Email classified",
		zap.String("model", c.modelName),
		zap.String("category", parsed.Category))

	return &core.Classification{
		Summary:  parsed.Summary,
		Category: parsed.Category,
	}, nil
}

// parseClassification parses the LLM response, salvaging the JSON object
// from surrounding prose when the model ignores the format instruction
func parseClassification(responseText string) (*classificationResponse, error) {
	var parsed classificationResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		jsonStart := strings.Index(responseText, "{")
		jsonEnd := strings.LastIndex(responseText, "}")
		if jsonStart < 0 || jsonEnd <= jsonStart {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
		if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}
	return &parsed, nil
}
