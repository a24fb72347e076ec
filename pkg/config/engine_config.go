// Package config provides engine configuration loading
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/careloop/outreach/pkg/models"
)

// EngineConfigFile represents the structure of the engine.yaml file.
// Durations are written in Go duration syntax ("30s", "5m").
type EngineConfigFile struct {
	Processor ProcessorConfigFile `yaml:"processor"`
	Batch     BatchConfigFile     `yaml:"batch"`
	Channels  []string            `yaml:"channels"`
}

// ProcessorConfigFile configures the drain workers.
type ProcessorConfigFile struct {
	PollInterval string `yaml:"poll_interval"`
	ClaimLimit   int    `yaml:"claim_limit"`
}

// BatchConfigFile configures the scheduled and recurring runners.
type BatchConfigFile struct {
	PollInterval string `yaml:"poll_interval"`
	Tolerance    string `yaml:"tolerance"`
}

// EngineConfig is the parsed engine configuration.
type EngineConfig struct {
	ProcessorPollInterval time.Duration
	ProcessorClaimLimit   int
	BatchPollInterval     time.Duration
	BatchTolerance        time.Duration
	Channels              []models.Channel
}

const (
	defaultProcessorPollInterval = 5 * time.Second
	defaultProcessorClaimLimit   = 50
	defaultBatchPollInterval     = time.Minute
	defaultBatchTolerance        = 5 * time.Minute
)

// LoadEngineConfig loads engine configuration from a YAML file.
func LoadEngineConfig(filepath string) (EngineConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile EngineConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config := DefaultEngineConfig()

	if configFile.Processor.PollInterval != "" {
		config.ProcessorPollInterval, err = time.ParseDuration(configFile.Processor.PollInterval)
		if err != nil {
			return EngineConfig{}, fmt.Errorf("invalid processor.poll_interval: %w", err)
		}
	}

	if configFile.Processor.ClaimLimit != 0 {
		config.ProcessorClaimLimit = configFile.Processor.ClaimLimit
	}

	if configFile.Batch.PollInterval != "" {
		config.BatchPollInterval, err = time.ParseDuration(configFile.Batch.PollInterval)
		if err != nil {
			return EngineConfig{}, fmt.Errorf("invalid batch.poll_interval: %w", err)
		}
	}

	if configFile.Batch.Tolerance != "" {
		config.BatchTolerance, err = time.ParseDuration(configFile.Batch.Tolerance)
		if err != nil {
			return EngineConfig{}, fmt.Errorf("invalid batch.tolerance: %w", err)
		}
	}

	if len(configFile.Channels) > 0 {
		config.Channels = make([]models.Channel, len(configFile.Channels))
		for i, ch := range configFile.Channels {
			config.Channels[i] = models.Channel(ch)
		}
	}

	if err := ValidateEngineConfig(config); err != nil {
		return EngineConfig{}, err
	}

	return config, nil
}

// LoadEngineConfigOrDefault attempts to load engine config from file,
// falling back to the defaults if the file doesn't exist.
func LoadEngineConfigOrDefault(filepath string) EngineConfig {
	config, err := LoadEngineConfig(filepath)
	if err != nil {
		return DefaultEngineConfig()
	}

	return config
}

// DefaultEngineConfig returns the configuration used when no file is given.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ProcessorPollInterval: defaultProcessorPollInterval,
		ProcessorClaimLimit:   defaultProcessorClaimLimit,
		BatchPollInterval:     defaultBatchPollInterval,
		BatchTolerance:        defaultBatchTolerance,
		Channels: []models.Channel{
			models.ChannelSMS,
			models.ChannelEmail,
			models.ChannelPush,
			models.ChannelInApp,
		},
	}
}

// ValidateEngineConfig validates the engine configuration.
func ValidateEngineConfig(config EngineConfig) error {
	if config.ProcessorPollInterval <= 0 {
		return fmt.Errorf("processor.poll_interval must be positive")
	}

	if config.ProcessorClaimLimit <= 0 {
		return fmt.Errorf("processor.claim_limit must be positive")
	}

	if config.BatchPollInterval <= 0 {
		return fmt.Errorf("batch.poll_interval must be positive")
	}

	if config.BatchTolerance < 0 {
		return fmt.Errorf("batch.tolerance must not be negative")
	}

	if len(config.Channels) == 0 {
		return fmt.Errorf("at least one channel must be enabled")
	}

	for i, ch := range config.Channels {
		if !ch.Valid() {
			return fmt.Errorf("channels[%d]: unknown channel '%s'", i, ch)
		}
	}

	return nil
}
