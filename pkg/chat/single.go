package chat

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/profiles"
	"github.com/go-go-golems/burattino/pkg/tools"
)

// PromptAssembler renders the instruction prompts the chat layer injects:
// the output description for structured answers and the tool usage
// instructions for tool calling.
type PromptAssembler interface {
	AssembleOutputDescription(schema any) (string, error)
	AssembleToolsPrompt(schemas []openai.Tool) (string, error)
}

// SingleChat is a one-on-one conversation between the user and an
// assistant, with optional structured answers and tool calling.
type SingleChat struct {
	*BaseChat

	registry  *profiles.Registry
	assembler PromptAssembler

	resolver   *FunctionResolver
	dispatcher *tools.Dispatcher
}

func NewSingleChat(reg *profiles.Registry, name string, characterPrompt string, needStream bool, assembler PromptAssembler, opts ...Option) (*SingleChat, error) {
	base, err := NewBaseChatWithName(reg, name, needStream, append(opts, WithCharacterPrompt(characterPrompt))...)
	if err != nil {
		return nil, err
	}
	return newSingleChat(reg, base, assembler), nil
}

func NewSingleChatWithCapability(reg *profiles.Registry, c profiles.Capability, characterPrompt string, needStream bool, assembler PromptAssembler, opts ...Option) (*SingleChat, error) {
	base, err := NewBaseChatWithCapability(reg, c, needStream, append(opts, WithCharacterPrompt(characterPrompt))...)
	if err != nil {
		return nil, err
	}
	return newSingleChat(reg, base, assembler), nil
}

func newSingleChat(reg *profiles.Registry, base *BaseChat, assembler PromptAssembler) *SingleChat {
	return &SingleChat{
		BaseChat:  base,
		registry:  reg,
		assembler: assembler,
		resolver:  NewFunctionResolver(reg),
	}
}

// GetAnswer appends the user input under the session cursor, runs the
// request and appends the assistant answer. The answer node is only added
// when the exchange succeeded, so a failed request leaves the tree ready
// for a retry.
func (s *SingleChat) GetAnswer(ctx context.Context, input string) (string, error) {
	return s.getAnswerUnder(ctx, s.Session.DefaultPath(), input)
}

// GetAnswerWithNewQuestion starts a sibling branch: the question is
// attached under parentPath instead of the cursor.
func (s *SingleChat) GetAnswerWithNewQuestion(ctx context.Context, parentPath []int, input string) (string, error) {
	return s.getAnswerUnder(ctx, parentPath, input)
}

func (s *SingleChat) getAnswerUnder(ctx context.Context, parentPath []int, input string) (string, error) {
	questionPath, err := s.AddMessageWithParentPath(parentPath, conversation.RoleUser, input)
	if err != nil {
		return "", err
	}
	return s.answerAt(ctx, questionPath)
}

// GetAnswerAgain regenerates an answer for the branch ending at endPath.
// The new answer becomes a sibling branch under endPath, leaving earlier
// regenerations in place.
func (s *SingleChat) GetAnswerAgain(ctx context.Context, endPath []int) (string, error) {
	return s.answerAt(ctx, endPath)
}

func (s *SingleChat) answerAt(ctx context.Context, endPath []int) (string, error) {
	body, err := s.BuildRequestBody(endPath, conversation.RoleAssistant)
	if err != nil {
		return "", err
	}

	content, err := s.fetchContent(ctx, body)
	if err != nil {
		return "", err
	}

	if _, err := s.AddMessageWithParentPath(endPath, conversation.RoleAssistant, content); err != nil {
		return "", err
	}
	return content, nil
}

// GetStructuredAnswer asks for an answer conforming to schema (a
// response_format payload with a json_schema block): an output description
// is injected as a system message, the free-form answer is condensed to
// JSON by a secondary model call, validated and unmarshalled into out.
func (s *SingleChat) GetStructuredAnswer(ctx context.Context, schema any, input string, out any) error {
	description, err := s.assembler.AssembleOutputDescription(schema)
	if err != nil {
		return err
	}
	if _, err := s.AddMessage(conversation.RoleSystem, description); err != nil {
		return err
	}

	answer, err := s.GetAnswer(ctx, input)
	if err != nil {
		return err
	}

	extracted, err := s.resolver.ResolveJSON(ctx, answer, schema)
	if err != nil {
		return err
	}

	if err := validateAgainstSchema(extracted, schema); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extracted), out); err != nil {
		return errors.Wrap(ErrParseResponse, err.Error())
	}
	return nil
}

// SetTools injects the tool usage instructions for the given registry as a
// system message and prepares the dispatcher used by GetToolAnswer.
func (s *SingleChat) SetTools(registry *tools.Registry) error {
	prompt, err := s.assembler.AssembleToolsPrompt(registry.OpenAITools())
	if err != nil {
		return err
	}
	if _, err := s.AddMessage(conversation.RoleSystem, prompt); err != nil {
		return err
	}

	s.dispatcher = tools.NewDispatcher(registry, s.resolver, s.sinks...)
	log.Debug().Strs("tools", registry.Names()).Msg("enabled tool calling")
	return nil
}

// GetToolAnswer runs one question and executes every <ToolUse> block the
// answer contains. It returns the answer with the blocks stripped and one
// result per call, in the order the calls appeared.
func (s *SingleChat) GetToolAnswer(ctx context.Context, input string) (string, []string, error) {
	if s.dispatcher == nil {
		return "", nil, errors.New("tools not configured, call SetTools first")
	}

	answer, err := s.GetAnswer(ctx, input)
	if err != nil {
		return "", nil, err
	}
	return s.dispatcher.Dispatch(ctx, s.meta, answer)
}

// validateAgainstSchema checks the extracted JSON against the inner
// json_schema.schema block of a response_format payload.
func validateAgainstSchema(document string, schema any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return errors.Wrap(err, "marshalling schema")
	}
	var format struct {
		JSONSchema struct {
			Schema json.RawMessage `json:"schema"`
		} `json:"json_schema"`
	}
	if err := json.Unmarshal(raw, &format); err != nil {
		return errors.Wrap(err, "decoding response format")
	}
	if len(format.JSONSchema.Schema) == 0 {
		// nothing to validate against
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(format.JSONSchema.Schema),
		gojsonschema.NewStringLoader(document))
	if err != nil {
		return errors.Wrap(ErrParseResponse, err.Error())
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return errors.Wrapf(ErrParseResponse, "answer does not match schema: %v", details)
	}
	return nil
}
