package prompt

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func loadTOML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

// Load reads a prompt configuration, its template and every content file it
// names. Relative paths in the config resolve against the config file's
// directory.
func Load(configPath string) (*Template, map[Info]Content, error) {
	var config Config
	if err := loadTOML(configPath, &config); err != nil {
		return nil, nil, err
	}

	baseDir := filepath.Dir(configPath)
	resolve := func(path string) string {
		if filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(baseDir, path)
	}

	var template Template
	if err := loadTOML(resolve(config.TemplatePath), &template); err != nil {
		return nil, nil, err
	}

	contents := make(map[Info]Content, len(config.PromptInfo))
	for _, info := range config.PromptInfo {
		var content Content
		if err := loadTOML(resolve(info.Path), &content); err != nil {
			return nil, nil, errors.Wrapf(err, "loading content for %s", info.Name)
		}
		content.normalize()
		contents[info] = content
	}

	log.Debug().Str("config", configPath).Int("prompts", len(contents)).Msg("loaded prompt library")
	return &template, contents, nil
}

// LoadLibrary loads and assembles a prompt library in one step.
func LoadLibrary(configPath string) (Library, error) {
	template, contents, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	return Assemble(template, contents), nil
}
