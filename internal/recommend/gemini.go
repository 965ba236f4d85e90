package recommend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiRecommender sends the prompt to a Gemini model through the genai client.
type GeminiRecommender struct {
	cli         *genai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewGeminiRecommender creates a recommender backed by the Gemini API.
func NewGeminiRecommender(ctx context.Context, modelName, apiKey string, temperature float32, logger *zap.Logger) (*GeminiRecommender, error) {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiRecommender{cli: cli, model: modelName, temperature: temperature, logger: logger}, nil
}

// Recommend implements Recommender.
func (g *GeminiRecommender) Recommend(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}

	temperature := g.temperature
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SystemPrompt()}}},
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	g.logger.Debug("recommendation generated", zap.String("model", g.model))
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
