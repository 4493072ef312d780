package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// runConfig holds everything the subcommands share. Defaults first,
// then the YAML file, then flags on top.
type runConfig struct {
	DataDir   string `yaml:"data_dir"`
	Model     string `yaml:"model"`
	StepsDir  string `yaml:"steps_dir"`
	Epochs    int    `yaml:"epochs"`
	BatchSize int    `yaml:"batch_size"`
	Classes   int    `yaml:"classes"`
	EvalLimit int    `yaml:"eval_limit"`
	Augment   bool   `yaml:"augment"`
	Listen    string `yaml:"listen"`
	GIF       string `yaml:"gif"`
	Stats     string `yaml:"stats"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		DataDir:   "./data",
		Model:     "titans.gob",
		StepsDir:  "./data/steps",
		Epochs:    10,
		BatchSize: 32,
		Classes:   10,
		EvalLimit: 1000,
	}
}

func loadConfig(path string, cfg *runConfig) error {
	merged := defaultRunConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading config %q", path)
		}
		if err := yaml.Unmarshal(raw, &merged); err != nil {
			return errors.Wrapf(err, "parsing config %q", path)
		}
	}

	// flags that were set explicitly survive the merge
	if cfg.DataDir != "" {
		merged.DataDir = cfg.DataDir
	}
	if cfg.Model != "" {
		merged.Model = cfg.Model
	}
	if cfg.StepsDir != "" {
		merged.StepsDir = cfg.StepsDir
	}
	if cfg.Epochs != 0 {
		merged.Epochs = cfg.Epochs
	}
	if cfg.BatchSize != 0 {
		merged.BatchSize = cfg.BatchSize
	}
	if cfg.Classes != 0 {
		merged.Classes = cfg.Classes
	}
	if cfg.EvalLimit != 0 {
		merged.EvalLimit = cfg.EvalLimit
	}
	if cfg.Augment {
		merged.Augment = true
	}
	if cfg.Listen != "" {
		merged.Listen = cfg.Listen
	}
	if cfg.GIF != "" {
		merged.GIF = cfg.GIF
	}
	if cfg.Stats != "" {
		merged.Stats = cfg.Stats
	}
	*cfg = merged
	return nil
}
