package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// Classifier gives a second opinion on whether a candidate is a real event.
// It is only consulted for candidates that are topically relevant but carry a
// weak structural event signal.
type Classifier interface {
	IsEvent(ctx context.Context, c models.CandidateEvent) (bool, error)
}

// ChatCompleter is the subset of the OpenAI client the classifier needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig holds configuration for the classifier.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIClassifier asks a chat model for a yes/no verdict.
type OpenAIClassifier struct {
	client ChatCompleter
	config OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIClassifier creates a classifier backed by the OpenAI API.
func NewOpenAIClassifier(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	return NewOpenAIClassifierWithClient(openai.NewClient(cfg.APIKey), cfg, logger), nil
}

// NewOpenAIClassifierWithClient wires an existing chat client.
func NewOpenAIClassifierWithClient(client ChatCompleter, cfg OpenAIConfig, logger *slog.Logger) *OpenAIClassifier {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &OpenAIClassifier{client: client, config: cfg, logger: logger.With("component", "classifier")}
}

const classifierSystemPrompt = "You review community event listings. Answer only YES if the text announces a specific scheduled event people can attend, otherwise answer NO."

// IsEvent implements Classifier.
func (c *OpenAIClassifier) IsEvent(ctx context.Context, e models.CandidateEvent) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	prompt := fmt.Sprintf("Title: %s\nDescription: %s\nLocation: %s\nOrganizer: %s\n\nIs this a scheduled event?",
		e.Title, e.Description, e.Location, e.OrganizerName)

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: 5,
	})
	if err != nil {
		c.logger.Warn("event classification failed", "candidate_id", e.ID, "error", err)
		return false, fmt.Errorf("classify candidate: %w", err)
	}

	if len(resp.Choices) == 0 {
		return false, errors.New("classify candidate: empty response")
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	c.logger.Debug("classified candidate",
		"candidate_id", e.ID,
		"answer", answer,
		"latency", time.Since(start),
	)

	switch {
	case strings.HasPrefix(answer, "YES"):
		return true, nil
	case strings.HasPrefix(answer, "NO"):
		return false, nil
	default:
		return false, fmt.Errorf("classify candidate: unexpected answer %q", answer)
	}
}
