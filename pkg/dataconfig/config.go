// Package dataconfig builds and writes the dataset description (data.yaml)
// consumed by the YOLO trainer.
package dataconfig

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	TrainImages      = "train/images"
	ValidationImages = "validation/images"
)

// DatasetConfig is the trainer's dataset specification.
// Field order is the key order of the written document.
type DatasetConfig struct {
	Path          string        `yaml:"path"`
	Train         string        `yaml:"train"`
	Val           string        `yaml:"val"`
	NC            int           `yaml:"nc"`
	Names         []string      `yaml:"names"`
	Augmentations Augmentations `yaml:"augmentations"`
}

// Augmentations holds the image-transformation intensities passed to the trainer
type Augmentations struct {
	HSVH        Param `yaml:"hsv_h"`       // hue
	HSVS        Param `yaml:"hsv_s"`       // saturation
	HSVV        Param `yaml:"hsv_v"`       // value
	Degrees     Param `yaml:"degrees"`     // rotation
	Translate   Param `yaml:"translate"`   // translation
	Scale       Param `yaml:"scale"`       // scaling
	Shear       Param `yaml:"shear"`       // shearing
	Perspective Param `yaml:"perspective"` // perspective distortion
	FlipUD      Param `yaml:"flipud"`      // flip up and down
	FlipLR      Param `yaml:"fliplr"`      // flip left and right
	Mosaic      Param `yaml:"mosaic"`
	Mixup       Param `yaml:"mixup"`
	CopyPaste   Param `yaml:"copy_paste"`
}

// Param is a float that always serializes with a decimal point (0.0, 1.0)
type Param float64

// MarshalYAML implements yaml.Marshaler
func (p Param) MarshalYAML() (interface{}, error) {
	s := strconv.FormatFloat(float64(p), 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s}, nil
}

// DefaultAugmentations returns the fixed augmentation block
func DefaultAugmentations() Augmentations {
	return Augmentations{
		HSVH:        0.015,
		HSVS:        0.7,
		HSVV:        0.4,
		Degrees:     0.0,
		Translate:   0.1,
		Scale:       0.5,
		Shear:       0.0,
		Perspective: 0.0,
		FlipUD:      0.0,
		FlipLR:      0.5,
		Mosaic:      1.0,
		Mixup:       0.0,
		CopyPaste:   0.0,
	}
}

// New builds a DatasetConfig rooted at root for the given classes
func New(root string, classes []string) DatasetConfig {
	names := make([]string, len(classes))
	copy(names, classes)

	return DatasetConfig{
		Path:          root,
		Train:         TrainImages,
		Val:           ValidationImages,
		NC:            len(names),
		Names:         names,
		Augmentations: DefaultAugmentations(),
	}
}

// Marshal serializes cfg as YAML
func Marshal(cfg DatasetConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to marshal dataset config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal dataset config: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads a dataset config previously written by WriteConfig
func Load(path string) (DatasetConfig, error) {
	var cfg DatasetConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read dataset config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse dataset config: %w", err)
	}
	return cfg, nil
}

// Validate checks internal consistency of a loaded config
func (c DatasetConfig) Validate() error {
	if c.NC != len(c.Names) {
		return fmt.Errorf("nc is %d but %d names are listed", c.NC, len(c.Names))
	}
	if c.Train == "" || c.Val == "" {
		return fmt.Errorf("train and val paths must be set")
	}
	return nil
}
