package agent

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicName is the provider name for Claude models.
const AnthropicName = "anthropic"

// MessagesClient is the subset of the Anthropic SDK used here.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicGenerator produces replies with the Anthropic Messages API.
type AnthropicGenerator struct {
	msg   MessagesClient
	model string
}

// NewAnthropicGenerator wraps an existing messages client.
func NewAnthropicGenerator(msg MessagesClient, model string) (*AnthropicGenerator, error) {
	if msg == nil {
		return nil, fmt.Errorf("anthropic: %w", ErrNotConfigured)
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic model: %w", ErrNotConfigured)
	}
	return &AnthropicGenerator{msg: msg, model: model}, nil
}

// NewAnthropicGeneratorFromAPIKey builds a generator backed by the SDK client.
func NewAnthropicGeneratorFromAPIKey(apiKey, model string) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key: %w", ErrNotConfigured)
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0))
	return NewAnthropicGenerator(&ac.Messages, model)
}

// Name implements Generator.
func (g *AnthropicGenerator) Name() string { return AnthropicName }

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, req ReplyRequest) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: replyMaxTokens,
		System:    []sdk.TextBlockParam{{Text: SystemPrompt(req)}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(UserPrompt(req))),
		},
		Temperature: sdk.Float(replyTemperature),
	}
	msg, err := g.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyReply
	}
	return b.String(), nil
}
