package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// mergeFile decodes the YAML document at path over c. Keys absent from the
// file keep their current values; unknown keys are rejected.
func (c *AIConfig) mergeFile(path string) error {
	// #nosec G304 -- path comes from the operator-controlled AI_CONFIG_FILE
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read AI config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file struct {
		AI *AIConfig `yaml:"ai"`
	}
	file.AI = c
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse AI config file %s: %w", path, err)
	}
	return nil
}
