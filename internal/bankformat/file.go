package bankformat

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Banks []Config `yaml:"banks"`
}

// LoadFile reads bank declarations from a YAML file and registers them,
// replacing built-in entries with the same id
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bank formats: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse bank formats %s: %w", path, err)
	}

	for _, c := range f.Banks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid bank format in %s: %w", path, err)
		}
	}
	for _, c := range f.Banks {
		r.Register(c)
	}
	return nil
}
