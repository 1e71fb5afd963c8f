package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajramos/convview/internal/content"
	"gopkg.in/yaml.v3"
)

// LoadConventions reads marker name overrides from a YAML file. Names the file leaves out
// keep their defaults.
func LoadConventions(path string) (content.Conventions, error) {
	defaults := content.DefaultConventions()
	if path == "" {
		return defaults, nil
	}
	if !fileExists(path) {
		return defaults, fmt.Errorf("conventions file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("failed to read conventions file: %w", err)
	}

	var file struct {
		Conventions *content.Conventions `yaml:"conventions"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return defaults, fmt.Errorf("failed to parse conventions file: %w", err)
	}
	if file.Conventions == nil {
		return defaults, fmt.Errorf("invalid conventions file: missing conventions section")
	}
	return file.Conventions.Merge(defaults), nil
}

// SaveConventions writes conventions as a YAML file
func SaveConventions(conv content.Conventions, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create conventions dir: %w", err)
	}
	data, err := yaml.Marshal(struct {
		Conventions content.Conventions `yaml:"conventions"`
	}{conv})
	if err != nil {
		return fmt.Errorf("failed to marshal conventions: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write conventions file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
