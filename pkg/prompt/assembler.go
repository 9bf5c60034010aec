package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Assemble renders the character and stage prompts of every content file
// against the shared template.
func Assemble(tmpl *Template, contents map[Info]Content) Library {
	result := make(Library, len(contents))
	for info, content := range contents {
		result[info.Name] = Prompt{
			CharacterPrompts: assembleCharacterPrompts(tmpl, content),
			StagePrompts:     assembleStagePrompts(content),
		}
	}
	return result
}

// assembleCharacterPrompts builds one prompt per character. A character
// without its own text for a section falls back to the "assistant" entry;
// sections empty for both are dropped.
func assembleCharacterPrompts(tmpl *Template, content Content) map[string]string {
	tcp := tmpl.CharacterPrompts
	ccp := content.CharacterPrompts

	sections := []struct {
		element TemplateElement
		texts   map[string]string
	}{
		{tcp.TaskDescription, ccp.TaskDescription},
		{tcp.Principle, ccp.Principle},
		{tcp.HowToThink, ccp.HowToThink},
		{tcp.Examples, ccp.Examples},
	}

	stages := assembleStageDescription(content.StagePrompts)

	result := make(map[string]string, len(ccp.CharacterNames))
	for _, name := range ccp.CharacterNames {
		var sb strings.Builder
		for _, section := range sections {
			text := section.texts[name]
			if text == "" {
				text = section.texts["assistant"]
			}
			sb.WriteString(buildElement(section.element.ElementName, section.element.Description, text))
		}
		sb.WriteString(buildElement(tcp.StageDescription.ElementName, tcp.StageDescription.Description, stages))
		result[name] = sb.String()
	}
	return result
}

func assembleStageDescription(stages []StagePrompt) string {
	var sb strings.Builder
	for _, stage := range stages {
		sb.WriteString(fmt.Sprintf("%s: %s\n", stage.Name, stage.Description))
	}
	return sb.String()
}

func assembleStagePrompts(content Content) map[string]string {
	result := make(map[string]string, len(content.StagePrompts))
	for _, stage := range content.StagePrompts {
		result[stage.Name] = stage.Content
	}
	return result
}

// buildElement wraps content in a named XML-style element with the section
// description as a leading comment. Empty content renders nothing.
func buildElement(name, description, content string) string {
	if content == "" {
		return ""
	}
	return fmt.Sprintf("<%s>\n    <!-- %s -->\n%s</%s>\n", name, description, content, name)
}

// Assembler renders the prompts the chat layer injects at runtime. It
// satisfies the chat package's PromptAssembler interface.
type Assembler struct{}

// AssembleOutputDescription turns a response_format payload into a plain
// text description of the required answer fields.
func (Assembler) AssembleOutputDescription(schema any) (string, error) {
	root, err := toMap(schema)
	if err != nil {
		return "", err
	}

	jsonSchema, ok := root["json_schema"].(map[string]any)
	if !ok {
		return "", errors.New("missing 'json_schema' field")
	}
	name, ok := jsonSchema["name"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'name' field")
	}
	description, ok := jsonSchema["description"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'description' field")
	}
	inner, ok := jsonSchema["schema"].(map[string]any)
	if !ok {
		return "", errors.New("missing 'schema' field")
	}
	properties, ok := inner["properties"].(map[string]any)
	if !ok {
		return "", errors.New("missing 'properties' field")
	}

	var sb strings.Builder
	sb.WriteString("Your answer must contain the following.\n")
	sb.WriteString(name)
	sb.WriteString(": ")
	sb.WriteString(description)
	sb.WriteString("\n")
	sb.WriteString(extractProperties(properties, 1))
	return sb.String(), nil
}

var toolsPromptTemplate = template.Must(
	template.New("tools-prompt").Funcs(sprig.TxtFuncMap()).Parse(`<ToolUse>
    When you need to call a tool, put the call in your answer wrapped in <ToolUse></ToolUse> tags, following these rules:
    1. Each tag holds exactly one tool call, and the call must provide every parameter the tool requires.
    2. The content of each tag should include:
      - The tool name, for example send_email.
      - A short description of what the tool does.
      - The parameters, complete and well formed (types, names).
    3. You may use several <ToolUse></ToolUse> tags in one answer, one per call you want made.
    4. The calls will be executed based on the information you provide, and the results handed back to you.
    5. Never answer with <ToolUse></ToolUse> tags alone, always include some other text such as your reasoning.

    You can use the following tools:

{{ .Tools | trim | indent 8 }}
</ToolUse>
`))

// AssembleToolsPrompt renders the instruction block describing how to
// request tool calls, listing every available tool with its parameters.
func (Assembler) AssembleToolsPrompt(schemas []openai.Tool) (string, error) {
	var tools strings.Builder
	for _, schema := range schemas {
		text, err := assembleToolPrompt(schema)
		if err != nil {
			return "", err
		}
		tools.WriteString(text)
	}

	var sb strings.Builder
	err := toolsPromptTemplate.Execute(&sb, map[string]string{"Tools": tools.String()})
	if err != nil {
		return "", errors.Wrap(err, "rendering tools prompt")
	}
	return sb.String(), nil
}

func assembleToolPrompt(schema openai.Tool) (string, error) {
	root, err := toMap(schema)
	if err != nil {
		return "", err
	}

	function, ok := root["function"].(map[string]any)
	if !ok {
		return "", errors.New("missing 'function' field")
	}
	name, ok := function["name"].(string)
	if !ok {
		return "", errors.New("missing function name")
	}
	description, ok := function["description"].(string)
	if !ok {
		description = ""
	}
	parameters, ok := function["parameters"].(map[string]any)
	if !ok {
		return "", errors.New("missing function parameters")
	}
	properties, ok := parameters["properties"].(map[string]any)
	if !ok {
		properties = map[string]any{}
	}

	var sb strings.Builder
	sb.WriteString("Function name: ")
	sb.WriteString(name)
	sb.WriteString("\nFunction description: ")
	sb.WriteString(description)
	sb.WriteString("\n")
	sb.WriteString(extractProperties(properties, 1))
	return sb.String(), nil
}

// extractProperties renders a JSON schema properties object as an indented
// field list. The "cot" chain-of-thought property is kept out of prompts.
func extractProperties(properties map[string]any, indent int) string {
	names := make([]string, 0, len(properties))
	for name := range properties {
		if name == "cot" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	prefix := strings.Repeat("  ", indent)
	for _, name := range names {
		value, _ := properties[name].(map[string]any)

		sb.WriteString(prefix)
		sb.WriteString(name)

		switch t := value["type"].(type) {
		case string:
			sb.WriteString(" (")
			sb.WriteString(t)
			sb.WriteString(")")
		case []any:
			var types []string
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			if len(types) > 0 {
				sb.WriteString(" ([")
				sb.WriteString(strings.Join(types, ", "))
				sb.WriteString("])")
			}
		}

		if description, ok := value["description"].(string); ok && description != "" {
			sb.WriteString(": ")
			sb.WriteString(description)
		}

		if enumValues, ok := value["enum"].([]any); ok {
			var literals []string
			for _, v := range enumValues {
				if s, ok := v.(string); ok {
					literals = append(literals, s)
				}
			}
			if len(literals) > 0 {
				sb.WriteString(" (Enum: [")
				sb.WriteString(strings.Join(literals, ", "))
				sb.WriteString("])")
			}
		}

		sb.WriteString("\n")

		if value["type"] == "object" {
			if nested, ok := value["properties"].(map[string]any); ok {
				sb.WriteString(extractProperties(nested, indent+1))
			}
		}
	}
	return sb.String()
}

// toMap reduces an arbitrary schema value to a generic map through a JSON
// round trip, so opaque schema types and hand-written maps are treated the
// same way.
func toMap(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling schema")
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "decoding schema")
	}
	return result, nil
}
