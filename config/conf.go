package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-yaml/yaml"
	"github.com/rs/zerolog/log"
)

// DefaultCategories are the labels the model is asked to sort transactions into.
var DefaultCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Bills & Utilities",
	"Entertainment",
	"Healthcare",
	"Income",
	"Other",
}

// ModelSettings describes one kind of completion call.
type ModelSettings struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type analysisConfig struct {
	ModelSettings   `yaml:",inline"`
	TransactionLimit int      `yaml:"transaction_limit"`
	Categories       []string `yaml:"categories"`
}

type reportConfig struct {
	Title string `yaml:"title"`
}

type MasterConfig struct {
	Analysis analysisConfig `yaml:"analysis"`
	Chat     ModelSettings  `yaml:"chat"`
	Report   reportConfig   `yaml:"report"`
}

// Default returns the settings used when no config file is present.
func Default() *MasterConfig {
	return &MasterConfig{
		Analysis: analysisConfig{
			ModelSettings: ModelSettings{
				Model:       "llama-3.3-70b-versatile",
				Temperature: 0.5,
				MaxTokens:   4000,
			},
			TransactionLimit: 50,
			Categories:       append([]string(nil), DefaultCategories...),
		},
		Chat: ModelSettings{
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.3,
			MaxTokens:   500,
		},
		Report: reportConfig{
			Title: "FinSight AI – Financial Analysis Report",
		},
	}
}

// InitConfig reads the YAML file at path on top of the defaults. A missing
// file is not an error.
func InitConfig(path string) (*MasterConfig, error) {
	c := Default()
	if err := c.getConf(path); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MasterConfig) getConf(file string) error {
	yamlFile, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", file).Msg("Config file not found, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", file, err)
	}

	if err := yaml.Unmarshal(yamlFile, c); err != nil {
		return fmt.Errorf("config: unmarshal %s: %w", file, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *MasterConfig) Validate() error {
	var errs []error

	if c.Analysis.Model == "" {
		errs = append(errs, errors.New("analysis model cannot be empty"))
	}
	if c.Chat.Model == "" {
		errs = append(errs, errors.New("chat model cannot be empty"))
	}
	if c.Analysis.TransactionLimit < 1 {
		errs = append(errs, fmt.Errorf("invalid transaction_limit %d: must be positive", c.Analysis.TransactionLimit))
	}
	if c.Analysis.MaxTokens < 1 || c.Chat.MaxTokens < 1 {
		errs = append(errs, errors.New("max_tokens must be positive"))
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 2 || c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, errors.New("temperature must be between 0 and 2"))
	}
	if len(c.Analysis.Categories) == 0 {
		errs = append(errs, errors.New("at least one category is required"))
	}

	return errors.Join(errs...)
}
