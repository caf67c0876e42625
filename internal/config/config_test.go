package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/yolo-prep/pkg/splitter"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.9, cfg.Split.TrainFraction)
	assert.Equal(t, "dataset", cfg.Split.DestRoot)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Split.TrainFraction = 0.8
	cfg.Split.Seed = 7
	cfg.Data.DatasetRoot = "/content/dataset"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"split": {"train_fraction": 0.7}}`), 0o644))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, loaded.Split.TrainFraction)
	assert.Equal(t, "dataset", loaded.Split.DestRoot)
	assert.Equal(t, "data.yaml", loaded.Data.OutputPath)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ratio too high", func(c *Config) { c.Split.TrainFraction = 1.0 }},
		{"ratio too low", func(c *Config) { c.Split.TrainFraction = 0 }},
		{"empty dest", func(c *Config) { c.Split.DestRoot = "" }},
		{"min size", func(c *Config) { c.Split.MinImageSize = 0 }},
		{"empty output", func(c *Config) { c.Data.OutputPath = "" }},
		{"confidence", func(c *Config) { c.Labeler.MinConfidence = 1.5 }},
		{"quality", func(c *Config) { c.Labeler.JPEGQuality = 0 }},
		{"backend", func(c *Config) { c.Labeler.Backend = "openai" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Split.TrainFraction = 2
	assert.True(t, errors.Is(cfg.Validate(), splitter.ErrInvalidRatio))
}

func TestResolveDatasetRoot(t *testing.T) {
	cfg := Default()
	root, err := cfg.ResolveDatasetRoot()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root))
	assert.Equal(t, "dataset", filepath.Base(root))

	cfg.Data.DatasetRoot = "/content/dataset"
	root, err = cfg.ResolveDatasetRoot()
	require.NoError(t, err)
	assert.Equal(t, "/content/dataset", root)
}
