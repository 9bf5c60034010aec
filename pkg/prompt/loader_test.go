package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "config.toml", `
template_path = "template.toml"

[[prompt_info]]
name = "get_paper_scores"
description = "score a paper"
path = "scores.toml"
`)

	writeFile(t, dir, "template.toml", `
[character_prompts.task_description]
element_name = "TaskDescription"
description = "what to do"

[character_prompts.stage_description]
element_name = "StageDescription"
description = "workflow stages"

[character_prompts.input_description]
element_name = "InputDescription"
description = "input format"

[character_prompts.output_description]
element_name = "OutputDescription"
description = "output format"

[character_prompts.principle]
element_name = "Principle"
description = "rules"

[character_prompts.how_to_think]
element_name = "HowToThink"
description = "reasoning style"

[character_prompts.examples]
element_name = "Examples"
description = "worked examples"
`)

	writeFile(t, dir, "scores.toml", `
[character_prompts.task_description]
assistant = "Score the paper.\n"

[[stage_prompt]]
name = "scoring"
description = "assign scores"
content = "Score each section from 1 to 10."
`)

	library, err := LoadLibrary(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	p, err := library.Get("get_paper_scores")
	require.NoError(t, err)

	// character_names defaults to just the assistant
	text, err := p.Default()
	require.NoError(t, err)
	assert.Contains(t, text, "Score the paper.")
	assert.Contains(t, text, "scoring: assign scores")

	stage, err := p.Stage("scoring")
	require.NoError(t, err)
	assert.Equal(t, "Score each section from 1 to 10.", stage)
}

func TestLoadMissingContentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.toml", `
template_path = "template.toml"

[[prompt_info]]
name = "broken"
description = "missing content"
path = "nope.toml"
`)
	writeFile(t, dir, "template.toml", "")

	_, _, err := Load(filepath.Join(dir, "config.toml"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken")
}
