package splitter

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPath  = errors.New("invalid source path")
	ErrInvalidRatio = errors.New("invalid train fraction")
	ErrNameClash    = errors.New("destination file name clash")
)

// InvalidPathError reports a source directory that is missing or not a directory.
type InvalidPathError struct {
	Path string
	Err  error
}

func (e *InvalidPathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrInvalidPath, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s is not a directory", ErrInvalidPath, e.Path)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// InvalidRatioError reports a train fraction outside [MinTrainFraction, MaxTrainFraction].
type InvalidRatioError struct {
	Fraction float64
}

func (e *InvalidRatioError) Error() string {
	return fmt.Sprintf("%s: %g (must be between %.2f and %.2f)",
		ErrInvalidRatio, e.Fraction, MinTrainFraction, MaxTrainFraction)
}

func (e *InvalidRatioError) Unwrap() error { return ErrInvalidRatio }

// NameClashError reports two source images that would be copied to the same
// destination file name even after prefixing their folders.
type NameClashError struct {
	Name  string
	First string
	Other string
}

func (e *NameClashError) Error() string {
	return fmt.Sprintf("%s: %s and %s both map to %s", ErrNameClash, e.First, e.Other, e.Name)
}

func (e *NameClashError) Unwrap() error { return ErrNameClash }
