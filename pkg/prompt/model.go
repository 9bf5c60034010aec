// Package prompt loads TOML prompt libraries and assembles the system
// prompts used by the chat layer: per-character prompts built from a shared
// template, stage prompts, the output description for structured answers
// and the <ToolUse> instruction block.
package prompt

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrCharacterPromptNotFound = errors.New("character prompt not found")
	ErrStagePromptNotFound     = errors.New("stage prompt not found")
	ErrPromptNotFound          = errors.New("prompt not found")
)

// Config is the top-level prompt configuration: where the template lives
// and which prompt content files to load.
type Config struct {
	TemplatePath string `toml:"template_path"`
	PromptInfo   []Info `toml:"prompt_info"`
}

type Info struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Path        string `toml:"path"`
}

// Template names and describes the sections a character prompt is built
// from. The section texts themselves live in the Content files.
type Template struct {
	CharacterPrompts CharacterPromptsTemplate `toml:"character_prompts"`
}

type CharacterPromptsTemplate struct {
	TaskDescription   TemplateElement `toml:"task_description"`
	StageDescription  TemplateElement `toml:"stage_description"`
	InputDescription  TemplateElement `toml:"input_description"`
	OutputDescription TemplateElement `toml:"output_description"`
	Principle         TemplateElement `toml:"principle"`
	HowToThink        TemplateElement `toml:"how_to_think"`
	Examples          TemplateElement `toml:"examples"`
}

type TemplateElement struct {
	ElementName string `toml:"element_name"`
	Description string `toml:"description"`
}

// Content is one prompt file: section texts per character plus the stage
// prompts of the workflow the prompt belongs to.
type Content struct {
	CharacterPrompts CharacterPrompts `toml:"character_prompts"`
	StagePrompts     []StagePrompt    `toml:"stage_prompt"`
}

type CharacterPrompts struct {
	CharacterNames  []string          `toml:"character_names"`
	TaskDescription map[string]string `toml:"task_description"`
	Principle       map[string]string `toml:"principle"`
	HowToThink      map[string]string `toml:"how_to_think"`
	Examples        map[string]string `toml:"examples"`
}

type StagePrompt struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Content     string `toml:"content"`
}

// normalize fills in defaults TOML decoding leaves empty.
func (c *Content) normalize() {
	if len(c.CharacterPrompts.CharacterNames) == 0 {
		c.CharacterPrompts.CharacterNames = []string{"assistant"}
	}
}

// Prompt is one assembled prompt: the rendered character prompts plus the
// stage prompt texts.
type Prompt struct {
	CharacterPrompts map[string]string
	StagePrompts     map[string]string
}

// Default returns the prompt of the default "assistant" character.
func (p Prompt) Default() (string, error) {
	return p.Character("assistant")
}

func (p Prompt) Character(name string) (string, error) {
	text, ok := p.CharacterPrompts[name]
	if !ok {
		return "", errors.Wrapf(ErrCharacterPromptNotFound, "%s", name)
	}
	return text, nil
}

func (p Prompt) Stage(name string) (string, error) {
	text, ok := p.StagePrompts[name]
	if !ok {
		return "", errors.Wrapf(ErrStagePromptNotFound, "%s", name)
	}
	return text, nil
}

// Library holds every assembled prompt keyed by its config name.
type Library map[string]Prompt

func (l Library) Get(name string) (Prompt, error) {
	p, ok := l[name]
	if !ok {
		return Prompt{}, errors.Wrap(ErrPromptNotFound, name)
	}
	return p, nil
}

func (l Library) MustGet(name string) Prompt {
	p, err := l.Get(name)
	if err != nil {
		panic(fmt.Sprintf("prompt library: %v", err))
	}
	return p
}
