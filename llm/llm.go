// Package llm defines the pluggable chat-completion backend used by the LLM
// analysis task (spec §4.7, §6.2) and the JSON Schema used to validate a
// model's reply before it is unmarshaled into a rubric result.
package llm

import "context"

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Request is a single JSON-object-constrained chat completion request
// (spec §6.2: POST {model, messages, response_format:{type:"json_object"}}).
type Request struct {
	Model    string
	Messages []Message
}

// Response is the model's reply; Content is the first choice's message
// content, expected to be a JSON object matching RubricSchema.
type Response struct {
	Content string
}

// ChatClient is the pluggable backend the LLM analysis task depends on.
// Concrete adapters (package llm/openaiclient, llm/anthropicclient,
// llm/bedrockclient) each wrap a different vendor SDK behind this
// interface, mirroring the teacher's multi-backend model.Client pattern.
type ChatClient interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
