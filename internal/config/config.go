package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/yolo-prep/internal/utils"
	"github.com/menta2k/yolo-prep/pkg/splitter"
)

// Config holds the application configuration
type Config struct {
	Split   SplitConfig   `json:"split"`
	Data    DataConfig    `json:"data"`
	Labeler LabelerConfig `json:"labeler"`
}

// SplitConfig holds configuration for the train/validation split
type SplitConfig struct {
	SourceDir     string   `json:"source_dir"`
	DestRoot      string   `json:"dest_root"`
	TrainFraction float64  `json:"train_fraction"`
	Seed          uint64   `json:"seed"`
	Extensions    []string `json:"extensions"`
	AllFiles      bool     `json:"all_files"`
	Verify        bool     `json:"verify"`
	MinImageSize  int      `json:"min_image_size"`
}

// DataConfig holds configuration for data.yaml generation
type DataConfig struct {
	ClassesPath string `json:"classes_path"`
	OutputPath  string `json:"output_path"`
	// DatasetRoot is written as the document's path; empty means the absolute split destination
	DatasetRoot string `json:"dataset_root"`
}

// LabelerConfig holds configuration for vision-model pre-labelling
type LabelerConfig struct {
	// Backend is "ollama" or "llamacpp"
	Backend string `json:"backend"`
	// URL of the backend server; empty uses the backend's default
	URL           string  `json:"url"`
	Model         string  `json:"model"`
	MinConfidence float64 `json:"min_confidence"`
	MaxImageSize  int     `json:"max_image_size"`
	JPEGQuality   int     `json:"jpeg_quality"`
}

// Vision backends for pre-labelling
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Split: SplitConfig{
			SourceDir:     "content",
			DestRoot:      splitter.DefaultDestRoot,
			TrainFraction: 0.9,
			Extensions:    append([]string(nil), utils.DefaultImageExtensions...),
			MinImageSize:  1,
		},
		Data: DataConfig{
			ClassesPath: "classes.txt",
			OutputPath:  "data.yaml",
		},
		Labeler: LabelerConfig{
			Backend:       BackendOllama,
			Model:         "qwen2.5vl:7b",
			MinConfidence: 0.5,
			MaxImageSize:  1024,
			JPEGQuality:   85,
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := splitter.ValidateFraction(c.Split.TrainFraction); err != nil {
		return err
	}

	if c.Split.DestRoot == "" {
		return fmt.Errorf("split.dest_root cannot be empty")
	}

	if c.Split.MinImageSize < 1 {
		return fmt.Errorf("split.min_image_size must be positive")
	}

	if c.Data.OutputPath == "" {
		return fmt.Errorf("data.output_path cannot be empty")
	}

	switch c.Labeler.Backend {
	case BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("unknown labeler.backend %q (use %q or %q)", c.Labeler.Backend, BackendOllama, BackendLlamaCpp)
	}

	if c.Labeler.MinConfidence < 0 || c.Labeler.MinConfidence > 1 {
		return fmt.Errorf("labeler.min_confidence must be between 0 and 1")
	}

	if c.Labeler.JPEGQuality < 1 || c.Labeler.JPEGQuality > 100 {
		return fmt.Errorf("labeler.jpeg_quality must be between 1 and 100")
	}

	return nil
}

// ResolveDatasetRoot returns Data.DatasetRoot, or the absolute split destination when unset
func (c *Config) ResolveDatasetRoot() (string, error) {
	if c.Data.DatasetRoot != "" {
		return c.Data.DatasetRoot, nil
	}
	return filepath.Abs(c.Split.DestRoot)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./yolo-prep.json"
	}
	return filepath.Join(home, ".config", "yolo-prep", "config.json")
}
