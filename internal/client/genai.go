package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/cyberwatch-india/backend/internal/config"
	"google.golang.org/genai"
)

const defaultGenAIModel = "gemini-1.5-flash"

// GenAIClient generates free text from a prompt with the Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

func NewGenAIClient(ctx context.Context, cfg config.AIConfig) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGenAIModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GenAIClient{client: client, model: model}, nil
}

func (c *GenAIClient) Model() string {
	return c.model
}

// GenerateText returns the response text. Blocked prompts and candidates
// stopped by safety filters are reported as errors mentioning "safety".
func (c *GenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", fmt.Errorf("empty generate content result")
	}
	if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked by safety filters: %s", res.PromptFeedback.BlockReason)
	}
	if len(res.Candidates) > 0 && res.Candidates[0] != nil && res.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("response stopped by safety filters")
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", fmt.Errorf("empty generate content result")
	}
	return text, nil
}
