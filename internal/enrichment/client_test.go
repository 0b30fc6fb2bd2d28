package enrichment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/STRATINT/eventfeed/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

type fakeChat struct {
	answer string
	err    error
	last   openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.answer == "" {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.answer}}},
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIClassifier_IsEvent(t *testing.T) {
	tests := []struct {
		name    string
		chat    *fakeChat
		want    bool
		wantErr bool
	}{
		{"yes", &fakeChat{answer: "YES"}, true, false},
		{"lowercase yes with punctuation", &fakeChat{answer: " yes."}, true, false},
		{"no", &fakeChat{answer: "No"}, false, false},
		{"garbage", &fakeChat{answer: "maybe"}, false, true},
		{"empty choices", &fakeChat{}, false, true},
		{"transport error", &fakeChat{err: errors.New("503")}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := NewOpenAIClassifierWithClient(tt.chat, OpenAIConfig{}, discardLogger())
			got, err := classifier.IsEvent(context.Background(), models.CandidateEvent{Title: "Open mic"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsEvent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenAIClassifier_DefaultsModel(t *testing.T) {
	chat := &fakeChat{answer: "YES"}
	classifier := NewOpenAIClassifierWithClient(chat, OpenAIConfig{}, discardLogger())
	if _, err := classifier.IsEvent(context.Background(), models.CandidateEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.last.Model != openai.GPT4oMini {
		t.Errorf("expected default model %q, got %q", openai.GPT4oMini, chat.last.Model)
	}
}

func TestNewOpenAIClassifierRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClassifier(OpenAIConfig{}, discardLogger()); err == nil {
		t.Fatal("expected error without api key")
	}
}
