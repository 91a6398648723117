// Package llm provides the Gemini-backed collaborators for structured
// extraction and embedding generation.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Default model names
const (
	DefaultExtractionModel = "gemini-2.5-flash"
	DefaultEmbeddingModel  = "text-embedding-004"
)

// Usage holds token counts and estimated cost for one model call
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Client is an abstraction over the AI collaborators the pipeline consumes
type Client interface {
	// GenerateJSON generates a JSON response for the prompt and reports usage
	GenerateJSON(ctx context.Context, prompt string) (string, Usage, error)
	// Embed generates a fixed-length embedding vector for the text
	Embed(ctx context.Context, text string) ([]float32, Usage, error)
	// ExtractionModel returns the model name used for extraction calls
	ExtractionModel() string
	// EmbeddingModel returns the model name used for embedding calls
	EmbeddingModel() string
	// Close releases any resources held by the client
	Close() error
}

// Config holds model selection for the Gemini client
type Config struct {
	ExtractionModel string
	EmbeddingModel  string
}

// DefaultConfig returns the default Gemini model configuration
func DefaultConfig() *Config {
	return &Config{
		ExtractionModel: DefaultExtractionModel,
		EmbeddingModel:  DefaultEmbeddingModel,
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateJSON generates JSON content and reports token usage
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (string, Usage, error) {
	model := c.client.GenerativeModel(c.config.ExtractionModel)
	model.SetTemperature(0.1) // Low temperature for consistent output
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", Usage{}, err
	}

	usage := usageFromResponse(resp)
	return CleanJSONBlock(text), usage, nil
}

// Embed generates an embedding vector for the text
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, Usage, error) {
	em := c.client.EmbeddingModel(c.config.EmbeddingModel)

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("failed to embed content: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, Usage{}, fmt.Errorf("no embedding in response")
	}

	// The embedding API does not report usage; estimate from input size
	usage := Usage{InputTokens: EstimateTokens(text)}
	usage.CostUSD = embeddingCostUSD(usage.InputTokens)

	return resp.Embedding.Values, usage, nil
}

// ExtractionModel returns the model name used for extraction calls
func (c *GeminiClient) ExtractionModel() string {
	return c.config.ExtractionModel
}

// EmbeddingModel returns the model name used for embedding calls
func (c *GeminiClient) EmbeddingModel() string {
	return c.config.EmbeddingModel
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from a Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

func usageFromResponse(resp *genai.GenerateContentResponse) Usage {
	var u Usage
	if resp.UsageMetadata != nil {
		u.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	u.CostUSD = generationCostUSD(u.InputTokens, u.OutputTokens)
	return u
}
