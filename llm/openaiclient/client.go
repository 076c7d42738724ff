// Package openaiclient implements llm.ChatClient against OpenAI's Chat
// Completions API, constraining replies to a JSON object per spec §6.2.
package openaiclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/drivevox/validator/llm"
)

// CompletionsClient captures the subset of the OpenAI SDK used by the
// adapter, so tests can substitute a fake.
type CompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements llm.ChatClient via the OpenAI Chat Completions API.
type Client struct {
	chat         CompletionsClient
	defaultModel string
}

// Options configures the adapter.
type Options struct {
	Chat         CompletionsClient
	DefaultModel string
}

// New builds a Client. Returns an error if opts.Chat is nil or DefaultModel
// is blank.
func New(opts Options) (*Client, error) {
	if opts.Chat == nil {
		return nil, errors.New("openaiclient: chat client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("openaiclient: default model is required")
	}
	return &Client{chat: opts.Chat, defaultModel: opts.DefaultModel}, nil
}

// NewFromAPIKey constructs a Client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	sdkClient := openai.NewClient(option.WithAPIKey(apiKey))
	return New(Options{Chat: sdkClient.Chat.Completions, DefaultModel: defaultModel})
}

// Complete implements llm.ChatClient.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Messages) == 0 {
		return llm.Response{}, errors.New("openaiclient: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.UserMessage(m.Content)
		_ = m.Role // the validation prompt is always a single user turn (spec §6.2)
	}

	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openaiclient: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, errors.New("openaiclient: response had no choices")
	}
	return llm.Response{Content: resp.Choices[0].Message.Content}, nil
}
