package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/examhall/internal/llm/prompts"
	"github.com/pavelanni/examhall/internal/model"
)

// Suggestion is the model's advisory grade for an open-ended answer.
type Suggestion struct {
	Score     int    `json:"score"`
	MaxPoints int    `json:"maxPoints"`
	Feedback  string `json:"feedback"`
}

type rawSuggestion struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client using the given review prompt variant.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	if err := prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptVariant(variant),
	}, nil
}

// Ping checks that the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// SuggestReview asks the model to grade an open-ended answer.
func (c *Client) SuggestReview(ctx context.Context, question model.Question, answer string) (*Suggestion, error) {
	prompt, err := prompts.BuildReviewPrompt(c.variant, question, answer)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM review API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices for review")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM review response", "question_id", question.ID, "raw", raw)
	return parseSuggestion(raw, question.Points)
}

// parseSuggestion decodes the model output and clamps the score to [0, maxPoints].
func parseSuggestion(raw string, maxPoints int) (*Suggestion, error) {
	var r rawSuggestion
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("parse review response: %w (raw: %s)", err, raw)
	}
	score := int(math.Round(r.Score))
	score = max(0, min(score, maxPoints))
	return &Suggestion{Score: score, MaxPoints: maxPoints, Feedback: r.Feedback}, nil
}
