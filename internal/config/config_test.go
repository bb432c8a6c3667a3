package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamlr/yamlr/internal/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.7, cfg.Threshold)
	assert.Equal(t, 3, cfg.BackupKeep)
	assert.Equal(t, "1.29", cfg.TargetVersion)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"threshold too high", func(c *Config) { c.Threshold = 1.5 }, false},
		{"threshold negative", func(c *Config) { c.Threshold = -0.1 }, false},
		{"negative backups", func(c *Config) { c.BackupKeep = -1 }, false},
		{"zero workers", func(c *Config) { c.Workers = 0 }, false},
		{"empty target", func(c *Config) { c.TargetVersion = "" }, false},
		{"tracing without endpoint", func(c *Config) { c.TracingEnabled = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, models.IsConfigError(err))
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := "threshold: 0.9\nignoreFiles:\n  - vendor/**\nbackupKeep: 1\ntargetVersion: \"1.25\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Threshold)
	assert.Equal(t, []string{"vendor/**"}, cfg.IgnoreFiles)
	assert.Equal(t, 1, cfg.BackupKeep)
	assert.Equal(t, "1.25", cfg.TargetVersion)
	// untouched fields keep their defaults
	assert.GreaterOrEqual(t, cfg.Workers, 1)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
}

func TestLoad_ImplicitMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Threshold, cfg.Threshold)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("threshold: 2.0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
}
