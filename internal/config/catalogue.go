package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// catalogueFile is the YAML layout of a stage catalogue override:
//
//	stages:
//	  - number: 1
//	    name: Detection
//	    roles: [HSE Officer]
type catalogueFile struct {
	Stages []workflow.StageDefinition `yaml:"stages"`
}

// LoadRegistry returns the default registry when path is empty, otherwise
// the registry described by the YAML file at path.
func LoadRegistry(path string) (*workflow.Registry, error) {
	if path == "" {
		return workflow.Default, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage catalogue: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a registry from YAML catalogue bytes.
func ParseRegistry(data []byte) (*workflow.Registry, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse stage catalogue: %w", err)
	}
	reg, err := workflow.NewRegistry(f.Stages)
	if err != nil {
		return nil, fmt.Errorf("invalid stage catalogue: %w", err)
	}
	return reg, nil
}
