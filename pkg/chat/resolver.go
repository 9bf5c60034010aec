package chat

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/profiles"
	"github.com/go-go-golems/burattino/pkg/tools"
)

// FunctionResolver turns free-form tool invocations into structured calls
// by asking a tool-capable model. Every resolution runs in a fresh,
// non-streaming chat so it never pollutes the primary conversation.
type FunctionResolver struct {
	registry *profiles.Registry
}

func NewFunctionResolver(reg *profiles.Registry) *FunctionResolver {
	return &FunctionResolver{registry: reg}
}

var _ tools.Resolver = (*FunctionResolver)(nil)

// ResolveFunctionCall sends the raw <ToolUse> text to a tool-use profile
// with the available schemas attached and returns the first tool call of
// the response.
func (r *FunctionResolver) ResolveFunctionCall(ctx context.Context, rawCall string, schemas []openai.Tool) (*openai.FunctionCall, error) {
	base, err := NewBaseChatWithCapability(r.registry, profiles.CapabilityToolUse, false)
	if err != nil {
		return nil, err
	}

	path, err := base.AddMessage(conversation.RoleUser, rawCall)
	if err != nil {
		return nil, err
	}
	body, err := base.BuildRequestBody(path, conversation.RoleAssistant)
	if err != nil {
		return nil, err
	}
	body.Tools = schemas

	resp, err := base.GetResponse(ctx, body)
	if err != nil {
		return nil, err
	}
	return resp.FirstToolCall()
}

// ResolveJSON condenses a free-form answer into JSON matching the given
// response_format schema.
func (r *FunctionResolver) ResolveJSON(ctx context.Context, text string, schema any) (string, error) {
	base, err := NewBaseChatWithCapability(r.registry, profiles.CapabilityToolUse, false)
	if err != nil {
		return "", err
	}

	path, err := base.AddMessage(conversation.RoleUser, text)
	if err != nil {
		return "", err
	}
	body, err := base.BuildRequestBody(path, conversation.RoleAssistant)
	if err != nil {
		return "", err
	}
	body.ResponseFormat = schema

	resp, err := base.GetResponse(ctx, body)
	if err != nil {
		return "", err
	}
	return resp.Content()
}
