// Package splitter partitions a labelled image set into train and validation
// subsets laid out the way the YOLO trainer expects them.
package splitter

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/yolo-prep/internal/utils"
	"github.com/menta2k/yolo-prep/pkg/imagecheck"
	"github.com/menta2k/yolo-prep/pkg/types"
)

const (
	MinTrainFraction = 0.01
	MaxTrainFraction = 0.99

	// DefaultDestRoot is resolved against the working directory
	DefaultDestRoot = "dataset"

	ImagesDir = "images"
	LabelsDir = "labels"
	LabelExt  = ".txt"
)

// Config holds configuration for the splitter
type Config struct {
	// DestRoot receives train/{images,labels} and validation/{images,labels}
	DestRoot string
	// Extensions is the image allow-list; empty means DefaultImageExtensions
	Extensions []string
	// AllFiles disables extension filtering and copies every file under images/
	AllFiles bool
	// Seed makes the partition reproducible; 0 draws from system entropy
	Seed uint64
	// Verify drops images that fail to decode
	Verify bool
	// MinImageSize is the smallest width and height kept by Verify
	MinImageSize int
}

// Splitter copies a random partition of a source dataset into the destination layout
type Splitter struct {
	config  Config
	checker *imagecheck.Checker
	logger  *log.Logger
}

// New creates a Splitter with default configuration
func New() *Splitter {
	return NewWithConfig(DefaultConfig())
}

// DefaultConfig returns the configuration used by New
func DefaultConfig() Config {
	return Config{
		DestRoot:   DefaultDestRoot,
		Extensions: append([]string(nil), utils.DefaultImageExtensions...),
	}
}

// NewWithConfig creates a Splitter with custom configuration. Zero fields
// take the defaults of DefaultConfig.
func NewWithConfig(config Config) *Splitter {
	if config.DestRoot == "" {
		config.DestRoot = DefaultDestRoot
	}
	switch {
	case config.AllFiles:
		config.Extensions = nil
	case len(config.Extensions) == 0:
		config.Extensions = append([]string(nil), utils.DefaultImageExtensions...)
	}
	checker := imagecheck.New()
	if config.MinImageSize > 0 {
		checker = imagecheck.NewWithConfig(imagecheck.Config{MinImageSize: config.MinImageSize})
	}
	return &Splitter{
		config:  config,
		checker: checker,
		logger:  log.Default(),
	}
}

// SetLogger replaces the logger used for progress output
func (s *Splitter) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// Root returns the destination root
func (s *Splitter) Root() string {
	return s.config.DestRoot
}

// Extensions returns the image allow-list in effect; nil means every file
func (s *Splitter) Extensions() []string {
	return s.config.Extensions
}

// Dir returns the destination directory for a subset and kind (ImagesDir or LabelsDir)
func (s *Splitter) Dir(subset types.Subset, kind string) string {
	return filepath.Join(s.config.DestRoot, string(subset), kind)
}

// ValidateFraction checks that a train fraction lies in [MinTrainFraction, MaxTrainFraction]
func ValidateFraction(fraction float64) error {
	if !(fraction >= MinTrainFraction && fraction <= MaxTrainFraction) {
		return &InvalidRatioError{Fraction: fraction}
	}
	return nil
}

// ValidateSource checks that sourceDir exists and is a directory
func ValidateSource(sourceDir string) error {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return &InvalidPathError{Path: sourceDir, Err: err}
	}
	if !info.IsDir() {
		return &InvalidPathError{Path: sourceDir}
	}
	return nil
}

// TrainCount returns floor(total * fraction)
func TrainCount(total int, fraction float64) int {
	return int(float64(total) * fraction)
}

// Split copies sourceDir/images (and matching sourceDir/labels) into the
// destination layout. Preconditions are checked before anything is written;
// a copy failure aborts the run and leaves already copied files in place.
func (s *Splitter) Split(sourceDir string, trainFraction float64) (types.SplitResult, error) {
	var result types.SplitResult

	if err := ValidateFraction(trainFraction); err != nil {
		return result, err
	}
	if err := ValidateSource(sourceDir); err != nil {
		return result, err
	}

	imageDir := filepath.Join(sourceDir, ImagesDir)
	labelDir := filepath.Join(sourceDir, LabelsDir)

	images, err := utils.ListFiles(imageDir, s.config.Extensions)
	if err != nil {
		return result, fmt.Errorf("failed to list images: %w", err)
	}
	labels, err := utils.ListFiles(labelDir, []string{"txt"})
	if err != nil {
		return result, fmt.Errorf("failed to list labels: %w", err)
	}

	if s.config.Verify {
		images, result.Skipped = s.verify(images)
	}

	result.ImageCount = len(images)
	result.LabelCount = len(labels)
	s.logger.Printf("Number of image files: %d", result.ImageCount)
	s.logger.Printf("Number of annotation files: %d", result.LabelCount)

	names, err := DestNames(imageDir, images)
	if err != nil {
		return result, err
	}

	if err := s.ensureLayout(); err != nil {
		return result, err
	}

	total := len(images)
	trainCount := TrainCount(total, trainFraction)
	valCount := total - trainCount
	s.logger.Printf("Images moving to train: %d", trainCount)
	s.logger.Printf("Images moving to validation: %d", valCount)

	rng := s.newRand()

	// Partial Fisher-Yates: pool[:i] holds the images already placed.
	pool := append([]string(nil), images...)
	for i := 0; i < total; i++ {
		j := i + rng.IntN(total-i)
		pool[i], pool[j] = pool[j], pool[i]

		subset := types.Train
		if i >= trainCount {
			subset = types.Validation
		}

		imgPath := pool[i]
		name := names[imgPath]

		n, err := utils.CopyFile(imgPath, filepath.Join(s.Dir(subset, ImagesDir), name))
		if err != nil {
			return result, err
		}
		result.Bytes += n

		labelPath, ok := FindLabel(imageDir, labelDir, imgPath)
		if ok {
			n, err := utils.CopyFile(labelPath, filepath.Join(s.Dir(subset, LabelsDir), utils.Stem(name)+LabelExt))
			if err != nil {
				return result, err
			}
			result.Bytes += n
		} else {
			result.BackgroundCount++
		}

		if subset == types.Train {
			result.TrainCount++
		} else {
			result.ValCount++
		}
	}

	s.logger.Printf("Copied %d train and %d validation images (%d background, %s)",
		result.TrainCount, result.ValCount, result.BackgroundCount, utils.FormatFileSize(result.Bytes))

	return result, nil
}

// DestNames assigns every image its file name in the destination. Images that
// share a base name are prefixed with their folder relative to imageDir, so
// images/a/x.jpg becomes a_x.jpg. A name that still clashes is an error.
func DestNames(imageDir string, images []string) (map[string]string, error) {
	count := make(map[string]int, len(images))
	for _, path := range images {
		count[filepath.Base(path)]++
	}

	names := make(map[string]string, len(images))
	owners := make(map[string]string, len(images))
	for _, path := range images {
		name := filepath.Base(path)
		if count[name] > 1 {
			if rel, err := filepath.Rel(imageDir, filepath.Dir(path)); err == nil && rel != "." {
				name = strings.ReplaceAll(filepath.ToSlash(rel), "/", "_") + "_" + name
			}
		}
		if first, ok := owners[name]; ok {
			return nil, &NameClashError{Name: name, First: first, Other: path}
		}
		owners[name] = path
		names[path] = name
	}
	return names, nil
}

// ensureLayout creates the four destination directories, keeping existing ones intact
func (s *Splitter) ensureLayout() error {
	for _, subset := range types.Subsets {
		for _, kind := range []string{ImagesDir, LabelsDir} {
			dir := s.Dir(subset, kind)
			created, err := utils.EnsureDir(dir)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			if created {
				s.logger.Printf("Created folder at %s.", dir)
			}
		}
	}
	return nil
}

func (s *Splitter) verify(images []string) ([]string, int) {
	kept := images[:0:0]
	skipped := 0
	for _, path := range images {
		if _, err := s.checker.Check(path); err != nil {
			s.logger.Printf("warning: skipping %s: %v", path, err)
			skipped++
			continue
		}
		kept = append(kept, path)
	}
	return kept, skipped
}

func (s *Splitter) newRand() *rand.Rand {
	seed := s.config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// LabelPath returns where the annotation for imgPath belongs: the relative
// path of the image mirrored under labelDir, with the .txt extension.
func LabelPath(imageDir, labelDir, imgPath string) string {
	name := utils.Stem(imgPath) + LabelExt
	if rel, err := filepath.Rel(imageDir, filepath.Dir(imgPath)); err == nil && rel != "." {
		return filepath.Join(labelDir, rel, name)
	}
	return filepath.Join(labelDir, name)
}

// FindLabel locates the annotation for an image: first at the mirrored
// relative path under labelDir, then directly under labelDir by stem.
func FindLabel(imageDir, labelDir, imgPath string) (string, bool) {
	if mirrored := LabelPath(imageDir, labelDir, imgPath); utils.FileExists(mirrored) {
		return mirrored, true
	}

	flat := filepath.Join(labelDir, utils.Stem(imgPath)+LabelExt)
	if utils.FileExists(flat) {
		return flat, true
	}
	return "", false
}
