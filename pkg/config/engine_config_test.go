package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/outreach/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadEngineConfig(t *testing.T) {
	path := writeConfig(t, `
processor:
  poll_interval: 2s
  claim_limit: 10
batch:
  poll_interval: 30s
  tolerance: 10m
channels:
  - sms
  - email
`)

	config, err := LoadEngineConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, config.ProcessorPollInterval)
	assert.Equal(t, 10, config.ProcessorClaimLimit)
	assert.Equal(t, 30*time.Second, config.BatchPollInterval)
	assert.Equal(t, 10*time.Minute, config.BatchTolerance)
	assert.Equal(t, []models.Channel{models.ChannelSMS, models.ChannelEmail}, config.Channels)
}

func TestLoadEngineConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
batch:
  tolerance: 1m
`)

	config, err := LoadEngineConfig(path)
	require.NoError(t, err)

	assert.Equal(t, defaultProcessorPollInterval, config.ProcessorPollInterval)
	assert.Equal(t, defaultProcessorClaimLimit, config.ProcessorClaimLimit)
	assert.Equal(t, time.Minute, config.BatchTolerance)
	assert.Len(t, config.Channels, 4)
}

func TestLoadEngineConfig_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
processor:
  poll_interval: fast
`)

	_, err := LoadEngineConfig(path)
	assert.ErrorContains(t, err, "processor.poll_interval")
}

func TestLoadEngineConfig_UnknownChannel(t *testing.T) {
	path := writeConfig(t, `
channels:
  - fax
`)

	_, err := LoadEngineConfig(path)
	assert.ErrorContains(t, err, "unknown channel")
}

func TestLoadEngineConfigOrDefault_MissingFile(t *testing.T) {
	config := LoadEngineConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, DefaultEngineConfig(), config)
}
