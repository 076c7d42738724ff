// Package bedrockclient implements llm.ChatClient against AWS Bedrock
// Runtime's Converse API, for deployments that route model traffic through
// AWS rather than calling a vendor endpoint directly.
package bedrockclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/drivevox/validator/llm"
)

// ConverseClient captures the subset of the Bedrock Runtime SDK used by the
// adapter.
type ConverseClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the adapter.
type Options struct {
	Client     ConverseClient
	DefaultModelID string
}

// Client implements llm.ChatClient via Bedrock's Converse API.
type Client struct {
	bedrock      ConverseClient
	defaultModel string
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("bedrockclient: client is required")
	}
	if strings.TrimSpace(opts.DefaultModelID) == "" {
		return nil, errors.New("bedrockclient: default model id is required")
	}
	return &Client{bedrock: opts.Client, defaultModel: opts.DefaultModelID}, nil
}

// Complete implements llm.ChatClient.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Messages) == 0 {
		return llm.Response{}, errors.New("bedrockclient: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages := make([]types.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = types.Message{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		}
	}

	out, err := c.bedrock.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:  &modelID,
		Messages: messages,
	})
	if err != nil {
		return llm.Response{}, fmt.Errorf("bedrockclient: converse: %w", err)
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return llm.Response{}, errors.New("bedrockclient: converse response had no message output")
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(tb.Value)
		}
	}
	return llm.Response{Content: text.String()}, nil
}
