package chat

import (
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/burattino/pkg/conversation"
)

// Request is the chat completion request payload. Only the fields this
// client actually sends are modeled; go-openai types are reused for the
// tool schema so they line up with the tools package.
type Request struct {
	Model          string                     `json:"model"`
	Messages       []conversation.WireMessage `json:"messages"`
	Stream         bool                       `json:"stream"`
	ResponseFormat any                        `json:"response_format,omitempty"`
	Tools          []openai.Tool              `json:"tools,omitempty"`
}

// Response is a non-streaming chat completion response.
type Response struct {
	Choices []openai.ChatCompletionChoice `json:"choices"`
	Usage   *openai.Usage                 `json:"usage"`
}

// Content returns the text of the first choice.
func (r *Response) Content() (string, error) {
	if len(r.Choices) == 0 {
		return "", errors.Wrap(ErrParseResponse, "response has no choices")
	}
	return r.Choices[0].Message.Content, nil
}

// FirstToolCall returns the first tool call of the first choice.
func (r *Response) FirstToolCall() (*openai.FunctionCall, error) {
	if len(r.Choices) == 0 {
		return nil, errors.Wrap(ErrParseResponse, "response has no choices")
	}
	calls := r.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil, errors.Wrap(ErrParseResponse, "response has no tool calls")
	}
	return &calls[0].Function, nil
}

// streamChunk is one SSE data payload of a streaming completion.
type streamChunk struct {
	Choices []openai.ChatCompletionStreamChoice `json:"choices"`
	Usage   *openai.Usage                       `json:"usage"`
}
