package chat

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/burattino/pkg/conversation"
	"github.com/go-go-golems/burattino/pkg/profiles"
)

// MultiChat runs a conversation between several named characters sharing
// one session. The current character's prompt is injected as the system
// message of every request, and answers are recorded under that
// character's role so the lens in AssembleContext keeps the perspectives
// straight.
type MultiChat struct {
	*BaseChat

	characterPrompts map[string]string
	current          string

	resolver  *FunctionResolver
	assembler PromptAssembler
}

func NewMultiChat(reg *profiles.Registry, name string, characterPrompts map[string]string, needStream bool, assembler PromptAssembler, opts ...Option) (*MultiChat, error) {
	if len(characterPrompts) == 0 {
		return nil, ErrNoCharacterPrompts
	}

	base, err := NewBaseChatWithName(reg, name, needStream, opts...)
	if err != nil {
		return nil, err
	}
	return &MultiChat{
		BaseChat:         base,
		characterPrompts: characterPrompts,
		resolver:         NewFunctionResolver(reg),
		assembler:        assembler,
	}, nil
}

func NewMultiChatWithCapability(reg *profiles.Registry, c profiles.Capability, characterPrompts map[string]string, needStream bool, assembler PromptAssembler, opts ...Option) (*MultiChat, error) {
	if len(characterPrompts) == 0 {
		return nil, ErrNoCharacterPrompts
	}

	base, err := NewBaseChatWithCapability(reg, c, needStream, opts...)
	if err != nil {
		return nil, err
	}
	return &MultiChat{
		BaseChat:         base,
		characterPrompts: characterPrompts,
		resolver:         NewFunctionResolver(reg),
		assembler:        assembler,
	}, nil
}

// SetCharacter selects who speaks next and swaps in their prompt.
func (m *MultiChat) SetCharacter(name string) error {
	prompt, ok := m.characterPrompts[name]
	if !ok {
		return &UndefinedCharacterError{Name: name}
	}
	m.current = name
	m.CharacterPrompt = prompt
	return nil
}

func (m *MultiChat) CurrentCharacter() string {
	return m.current
}

func (m *MultiChat) AddUserMessage(content string) ([]int, error) {
	return m.AddMessage(conversation.RoleUser, content)
}

func (m *MultiChat) AddSystemMessage(content string) ([]int, error) {
	return m.AddMessage(conversation.RoleSystem, content)
}

// GetAnswer lets the current character speak, seeing the conversation so
// far through their own lens, and records the line under their role.
func (m *MultiChat) GetAnswer(ctx context.Context) (string, error) {
	if m.current == "" {
		return "", ErrNoCharacterSelected
	}
	speaker := conversation.CharacterRole(m.current)

	body, err := m.BuildRequestBody(m.Session.DefaultPath(), speaker)
	if err != nil {
		return "", err
	}

	content, err := m.fetchContent(ctx, body)
	if err != nil {
		return "", err
	}
	log.Debug().Str("character", m.current).Int("chars", len(content)).Msg("character answered")

	if _, err := m.AddMessage(speaker, content); err != nil {
		return "", err
	}
	return content, nil
}

// Dialogue is one turn: the character reacts to the user's input.
func (m *MultiChat) Dialogue(ctx context.Context, character, userInput string) (string, error) {
	if err := m.SetCharacter(character); err != nil {
		return "", err
	}
	if _, err := m.AddUserMessage(userInput); err != nil {
		return "", err
	}
	return m.GetAnswer(ctx)
}

// GetStructuredAnswer makes the current character answer in the shape of
// schema, condensed and validated like SingleChat.GetStructuredAnswer.
func (m *MultiChat) GetStructuredAnswer(ctx context.Context, schema any, out any) error {
	if m.assembler == nil {
		return errors.New("no prompt assembler configured")
	}

	description, err := m.assembler.AssembleOutputDescription(schema)
	if err != nil {
		return err
	}
	if _, err := m.AddSystemMessage(description); err != nil {
		return err
	}

	answer, err := m.GetAnswer(ctx)
	if err != nil {
		return err
	}

	extracted, err := m.resolver.ResolveJSON(ctx, answer, schema)
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

// StructuredDialogue combines SetCharacter, the user input and a
// structured answer in one call.
func (m *MultiChat) StructuredDialogue(ctx context.Context, character, userInput string, schema any, out any) error {
	if err := m.SetCharacter(character); err != nil {
		return err
	}
	if _, err := m.AddUserMessage(userInput); err != nil {
		return err
	}
	return m.GetStructuredAnswer(ctx, schema, out)
}
