package recommend

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// ChatRecommender sends the prompt to an eino chat model.
type ChatRecommender struct {
	model  model.BaseChatModel
	logger *zap.Logger
}

// NewChatRecommender wraps an existing chat model.
func NewChatRecommender(m model.BaseChatModel, logger *zap.Logger) *ChatRecommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatRecommender{model: m, logger: logger}
}

// NewOpenAIRecommender creates a recommender backed by an OpenAI-compatible
// chat completion endpoint.
func NewOpenAIRecommender(ctx context.Context, modelName, apiKey, baseURL string, temperature float32, logger *zap.Logger) (*ChatRecommender, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	cfg := &openai.ChatModelConfig{
		Model:       modelName,
		APIKey:      apiKey,
		Temperature: &temperature,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	m, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewChatRecommender(m, logger), nil
}

// Recommend implements Recommender.
func (r *ChatRecommender) Recommend(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}

	resp, err := r.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(SystemPrompt()),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("chat model returned no message")
	}

	r.logger.Debug("recommendation generated",
		zap.Int("candidates", len(req.Candidates)),
		zap.Int("response_len", len(resp.Content)))
	return resp.Content, nil
}
