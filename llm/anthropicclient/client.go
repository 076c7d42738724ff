// Package anthropicclient implements llm.ChatClient against the Anthropic
// Messages API.
package anthropicclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/drivevox/validator/llm"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, satisfied by *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the adapter.
type Options struct {
	Messages     MessagesClient
	DefaultModel string
	MaxTokens    int64
}

// Client implements llm.ChatClient via the Anthropic Messages API.
type Client struct {
	messages     MessagesClient
	defaultModel string
	maxTokens    int64
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	if opts.Messages == nil {
		return nil, errors.New("anthropicclient: messages client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("anthropicclient: default model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{messages: opts.Messages, defaultModel: opts.DefaultModel, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	sdkClient := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(Options{Messages: sdkClient.Messages, DefaultModel: defaultModel})
}

// Complete implements llm.ChatClient. Anthropic has no native
// response_format=json_object switch; the JSON-only instruction lives in
// the prompt itself (spec §6.2), and ValidateAndDecode rejects anything
// that doesn't come back as a conforming JSON object.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Messages) == 0 {
		return llm.Response{}, errors.New("anthropicclient: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages := make([]sdk.MessageParam, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = sdk.NewUserMessage(sdk.NewTextBlock(m.Content))
	}

	resp, err := c.messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return llm.Response{}, fmt.Errorf("anthropicclient: message create: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return llm.Response{Content: text.String()}, nil
}
