// Package imagecheck verifies that dataset images can be decoded before they
// are handed to the trainer.
package imagecheck

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Checker decodes images and validates their dimensions
type Checker struct {
	config Config
}

// Config holds configuration for the image checker
type Config struct {
	// MinImageSize is the smallest accepted width and height in pixels
	MinImageSize int
}

// Info contains basic image metadata
type Info struct {
	Width  int
	Height int
	Format string
}

// New creates a Checker that accepts any non-empty image
func New() *Checker {
	return &Checker{
		config: Config{
			MinImageSize: 1,
		},
	}
}

// NewWithConfig creates a Checker with custom configuration
func NewWithConfig(config Config) *Checker {
	return &Checker{config: config}
}

// Check decodes the image at path and validates it
func (c *Checker) Check(path string) (Info, error) {
	img, format, err := c.load(path)
	if err != nil {
		return Info{}, err
	}

	bounds := img.Bounds()
	info := Info{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}

	if info.Width < c.config.MinImageSize || info.Height < c.config.MinImageSize {
		return info, fmt.Errorf("image too small: %dx%d (minimum: %d)",
			info.Width, info.Height, c.config.MinImageSize)
	}

	return info, nil
}

// Load decodes the image at path
func (c *Checker) Load(path string) (image.Image, error) {
	img, _, err := c.load(path)
	return img, err
}

// load tries imaging first, then the registered decoders, then the cgo WebP decoder
func (c *Checker) load(path string) (image.Image, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image file: %w", err)
	}

	if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		_, format, _ := image.DecodeConfig(bytes.NewReader(data))
		return img, format, nil
	}

	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}

	if strings.HasSuffix(strings.ToLower(path), ".webp") {
		if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
			return img, "webp", nil
		}
	}

	return nil, "", fmt.Errorf("image: unknown or corrupt format for %s", path)
}
