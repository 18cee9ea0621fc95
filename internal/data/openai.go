package data

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/groupguard/feishu-guard/internal/biz/repo"
)

// openaiRepo implements the completion capability over any
// OpenAI-compatible endpoint
type openaiRepo struct {
	client *openai.Client
	model  string
}

// NewCompletionRepo creates a completion repository. Returns nil when no
// API key is configured; callers treat a nil repo as "not configured".
func NewCompletionRepo(apiKey, baseURL, model string) repo.CompletionRepo {
	if apiKey == "" {
		return nil
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &openaiRepo{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (r *openaiRepo) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (r *openaiRepo) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("no image returned")
	}
	return resp.Data[0].URL, nil
}
