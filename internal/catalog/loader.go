package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

//go:embed default_steps.yaml
var defaultSteps []byte

type catalogFile struct {
	Steps []domain.StepDefinition `yaml:"steps"`
}

// Default builds the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Load(defaultSteps)
}

func Load(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.ConfigurationError("parse step catalog: %v", err)
	}
	return New(f.Steps)
}

func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read step catalog %s: %v", domain.ErrConfiguration, path, err)
	}
	return Load(data)
}

// FromConfig loads path when set and the embedded default otherwise.
func FromConfig(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
