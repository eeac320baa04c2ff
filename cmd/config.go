package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/mlefit/internal/opt"
	"gopkg.in/yaml.v2"
)

// trainConfig is the YAML form of the train command's settings.
// Flags given on the command line take precedence.
type trainConfig struct {
	Model      string `yaml:"model"`
	Components int    `yaml:"components"`
	Minimizer  string `yaml:"minimizer"`

	Opt opt.Config `yaml:",inline"`
}

func loadConfig(path string) (*trainConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var config trainConfig
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return &config, nil
}
