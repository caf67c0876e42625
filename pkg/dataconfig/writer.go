package dataconfig

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var ErrMissingClassList = errors.New("class list not found")

// MissingClassListError reports an absent class-list file. It is recoverable:
// nothing has been written and the caller may retry once the file exists.
type MissingClassListError struct {
	Path string
}

func (e *MissingClassListError) Error() string {
	return fmt.Sprintf("%s: create a classes.txt labelmap at %s", ErrMissingClassList, e.Path)
}

func (e *MissingClassListError) Unwrap() error { return ErrMissingClassList }

// ReadClasses reads one class name per line, skipping blank lines.
// Order and duplicates are kept as found.
func ReadClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingClassListError{Path: path}
		}
		return nil, fmt.Errorf("failed to open class list: %w", err)
	}
	defer f.Close()

	classes := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		classes = append(classes, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class list: %w", err)
	}

	return classes, nil
}

// Writer produces data.yaml files from class lists
type Writer struct {
	logger *log.Logger
}

// NewWriter creates a Writer logging to the standard logger
func NewWriter() *Writer {
	return &Writer{logger: log.Default()}
}

// SetLogger replaces the logger used for progress output
func (w *Writer) SetLogger(logger *log.Logger) {
	w.logger = logger
}

// WriteConfig reads classListPath and writes the dataset config for
// datasetRoot to outputPath, replacing any existing file. A missing class
// list returns *MissingClassListError and leaves outputPath untouched.
func (w *Writer) WriteConfig(classListPath, outputPath, datasetRoot string) (DatasetConfig, error) {
	classes, err := ReadClasses(classListPath)
	if err != nil {
		return DatasetConfig{}, err
	}

	cfg := New(datasetRoot, classes)
	data, err := Marshal(cfg)
	if err != nil {
		return cfg, err
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cfg, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return cfg, fmt.Errorf("failed to write config file: %w", err)
	}

	w.logger.Printf("Created config file at %s (%d classes)", outputPath, cfg.NC)
	return cfg, nil
}

// WriteConfig writes a dataset config using a default Writer
func WriteConfig(classListPath, outputPath, datasetRoot string) (DatasetConfig, error) {
	return NewWriter().WriteConfig(classListPath, outputPath, datasetRoot)
}
