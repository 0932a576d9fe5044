package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider names for OpenAI-compatible endpoints.
const (
	OpenAIName = "openai"
	GroqName   = "groq"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1/"

const (
	replyMaxTokens   = 100
	replyTemperature = 0.9
)

// ChatCompleter is the subset of the OpenAI SDK used here.
type ChatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIGenerator produces replies with a chat completions endpoint. It
// serves both OpenAI and Groq, which differ only in base URL and model.
type OpenAIGenerator struct {
	name  string
	chat  ChatCompleter
	model string
}

// NewOpenAIGenerator wraps an existing completions client under name.
func NewOpenAIGenerator(name string, chat ChatCompleter, model string) (*OpenAIGenerator, error) {
	if chat == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}
	if model == "" {
		return nil, fmt.Errorf("%s model: %w", name, ErrNotConfigured)
	}
	return &OpenAIGenerator{name: name, chat: chat, model: model}, nil
}

// NewOpenAIGeneratorFromAPIKey builds a generator backed by the SDK client.
// An empty baseURL uses the SDK default.
func NewOpenAIGeneratorFromAPIKey(name, apiKey, baseURL, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key: %w", name, ErrNotConfigured)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return NewOpenAIGenerator(name, &client.Chat.Completions, model)
}

// Name implements Generator.
func (g *OpenAIGenerator) Name() string { return g.name }

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req ReplyRequest) (string, error) {
	resp, err := g.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(req)),
			openai.UserMessage(UserPrompt(req)),
		},
		MaxTokens:   openai.Int(replyMaxTokens),
		Temperature: openai.Float(replyTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", g.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}
