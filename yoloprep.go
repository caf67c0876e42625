// Package yoloprep prepares a labelled image set for YOLO object-detection
// training.
//
// A source dataset is a directory holding images/ and labels/, where every
// label is a YOLO .txt file named after its image. Images without a label are
// background samples. Preparation has two independent steps:
//
//  1. Split (pkg/splitter): copy a random train/validation partition into
//     dataset/train/{images,labels} and dataset/validation/{images,labels}.
//  2. Config (pkg/dataconfig): turn a classes.txt labelmap into the trainer's
//     data.yaml, with a fixed augmentation block.
//
// Basic usage:
//
//	report, err := yoloprep.Prepare(yoloprep.Options{
//		SourceDir:     "content",
//		TrainFraction: 0.9,
//		ClassesPath:   "classes.txt",
//		OutputPath:    "data.yaml",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if report.Warning != nil {
//		log.Printf("config not written: %v", report.Warning)
//	}
//
// Unlabelled images can be pre-annotated with a local vision model through
// pkg/labeler and pkg/ollama before splitting.
package yoloprep

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/menta2k/yolo-prep/pkg/dataconfig"
	"github.com/menta2k/yolo-prep/pkg/splitter"
	"github.com/menta2k/yolo-prep/pkg/types"
)

// Version of the yolo-prep library
const Version = "1.0.0"

// Options configures a full preparation run
type Options struct {
	SourceDir     string
	TrainFraction float64
	// Split configures the copy; zero fields take the splitter defaults, so
	// only DefaultImageExtensions are copied unless Split.AllFiles is set
	Split splitter.Config

	ClassesPath string
	OutputPath  string
	// DatasetRoot is the document's path; empty means the absolute split destination
	DatasetRoot string

	// Logger receives progress output; nil uses the standard logger
	Logger *log.Logger
}

// Report contains the outcome of Prepare
type Report struct {
	Split  types.SplitResult
	Config *dataconfig.DatasetConfig
	// Warning holds a recoverable condition, such as a missing class list
	Warning error
}

// Prepare splits the source dataset and writes data.yaml. Split failures are
// returned as errors; a missing class list is reported in Report.Warning and
// leaves the output file untouched.
func Prepare(opts Options) (Report, error) {
	var report Report

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := splitter.NewWithConfig(opts.Split)
	s.SetLogger(logger)

	result, err := s.Split(opts.SourceDir, opts.TrainFraction)
	report.Split = result
	if err != nil {
		return report, err
	}

	root := opts.DatasetRoot
	if root == "" {
		root, err = filepath.Abs(s.Root())
		if err != nil {
			return report, fmt.Errorf("failed to resolve dataset root: %w", err)
		}
	}

	w := dataconfig.NewWriter()
	w.SetLogger(logger)

	cfg, err := w.WriteConfig(opts.ClassesPath, opts.OutputPath, root)
	if err != nil {
		if errors.Is(err, dataconfig.ErrMissingClassList) {
			logger.Printf("%v", err)
			report.Warning = err
			return report, nil
		}
		return report, err
	}
	report.Config = &cfg

	return report, nil
}

// Quiet returns a logger that discards output
func Quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
