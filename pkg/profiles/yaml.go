package profiles

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type registryFile struct {
	Endpoints []Endpoint `yaml:"endpoints"`
	Profiles  []Profile  `yaml:"profiles"`
}

// LoadYAML populates the registry from a YAML config. Endpoints are added
// before profiles so profile endpoint references resolve in one pass.
func (r *Registry) LoadYAML(data []byte) error {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrap(err, "parsing registry config")
	}

	for _, ep := range file.Endpoints {
		r.AddEndpoint(ep)
	}
	for _, p := range file.Profiles {
		if err := r.AddProfile(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) LoadYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading registry config %s", path)
	}
	return r.LoadYAML(data)
}
