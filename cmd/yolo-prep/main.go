package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	yoloprep "github.com/menta2k/yolo-prep"
	"github.com/menta2k/yolo-prep/internal/config"
	"github.com/menta2k/yolo-prep/internal/utils"
	"github.com/menta2k/yolo-prep/pkg/client"
	"github.com/menta2k/yolo-prep/pkg/dataconfig"
	"github.com/menta2k/yolo-prep/pkg/labeler"
	"github.com/menta2k/yolo-prep/pkg/llamacpp"
	"github.com/menta2k/yolo-prep/pkg/ollama"
	"github.com/menta2k/yolo-prep/pkg/splitter"
	"github.com/menta2k/yolo-prep/pkg/types"
)

const usage = `usage: %s <command> [flags]

commands:
  split     copy a random train/validation partition of -source into -dest
  config    write data.yaml from a classes.txt labelmap
  prepare   split, then write data.yaml
  label     pre-label images without annotations using a vision model
  inspect   validate a data.yaml and count the prepared dataset
  init      write a default JSON config file
  version   print the version

Run '%s <command> -h' for command flags.
`

func main() {
	prog := filepath.Base(os.Args[0])
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, prog, prog)
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "split":
		runSplit(args)
	case "config":
		runConfig(args)
	case "prepare":
		runPrepare(args)
	case "label":
		runLabel(args)
	case "inspect":
		runInspect(args)
	case "init":
		runInit(args)
	case "version":
		fmt.Println(yoloprep.GetVersion())
	case "-h", "--help", "help":
		fmt.Fprintf(os.Stdout, usage, prog, prog)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		fmt.Fprintf(os.Stderr, usage, prog, prog)
		os.Exit(2)
	}
}

// command couples a flag set with the configuration its flags write into.
// Values from -config are loaded first and flags given on the command line win.
type command struct {
	fs         *flag.FlagSet
	cfg        *config.Config
	configPath string
}

func newCommand(name string) *command {
	c := &command{
		fs:  flag.NewFlagSet(name, flag.ExitOnError),
		cfg: config.Default(),
	}
	c.fs.StringVar(&c.configPath, "config", "", "JSON config file; flags override its values")
	return c
}

func (c *command) parse(args []string) {
	_ = c.fs.Parse(args)

	if c.configPath != "" {
		loaded, err := config.LoadFromFile(c.configPath)
		if err != nil {
			log.Fatal(err)
		}
		*c.cfg = *loaded
		_ = c.fs.Parse(args)
	}

	if err := c.cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
}

func (c *command) splitFlags() {
	s := &c.cfg.Split
	c.fs.StringVar(&s.SourceDir, "source", s.SourceDir, "source dataset directory containing images/ and labels/")
	c.fs.StringVar(&s.DestRoot, "dest", s.DestRoot, "destination root for train/ and validation/")
	c.fs.Float64Var(&s.TrainFraction, "ratio", s.TrainFraction, "fraction of images used for training (0.01-0.99)")
	c.fs.Uint64Var(&s.Seed, "seed", s.Seed, "random seed for a reproducible split (0 = random)")
	c.fs.Var((*listFlag)(&s.Extensions), "ext", "comma separated image extensions; empty uses the default list")
	c.fs.BoolVar(&s.AllFiles, "all-files", s.AllFiles, "copy every file under images/, ignoring -ext")
	c.fs.BoolVar(&s.Verify, "verify", s.Verify, "skip images that fail to decode")
	c.fs.IntVar(&s.MinImageSize, "min-size", s.MinImageSize, "minimum width and height for -verify (px)")
}

func (c *command) dataFlags() {
	d := &c.cfg.Data
	c.fs.StringVar(&d.ClassesPath, "classes", d.ClassesPath, "class list, one name per line")
	c.fs.StringVar(&d.OutputPath, "out", d.OutputPath, "data.yaml output path")
	c.fs.StringVar(&d.DatasetRoot, "root", d.DatasetRoot, "dataset path written to data.yaml (default: absolute -dest)")
}

func (c *command) splitterConfig() splitter.Config {
	s := c.cfg.Split
	return splitter.Config{
		DestRoot:     s.DestRoot,
		Extensions:   s.Extensions,
		AllFiles:     s.AllFiles,
		Seed:         s.Seed,
		Verify:       s.Verify,
		MinImageSize: s.MinImageSize,
	}
}

func runSplit(args []string) {
	c := newCommand("split")
	c.splitFlags()
	c.parse(args)

	result, err := splitter.NewWithConfig(c.splitterConfig()).Split(c.cfg.Split.SourceDir, c.cfg.Split.TrainFraction)
	if err != nil {
		log.Fatal(err)
	}
	printJSON(result)
}

func runConfig(args []string) {
	c := newCommand("config")
	c.dataFlags()
	c.fs.StringVar(&c.cfg.Split.DestRoot, "dest", c.cfg.Split.DestRoot, "split destination used when -root is empty")
	c.parse(args)

	root, err := c.cfg.ResolveDatasetRoot()
	if err != nil {
		log.Fatal(err)
	}

	if _, err := dataconfig.WriteConfig(c.cfg.Data.ClassesPath, c.cfg.Data.OutputPath, root); err != nil {
		if errors.Is(err, dataconfig.ErrMissingClassList) {
			log.Printf("%v", err)
			return
		}
		log.Fatal(err)
	}
}

func runPrepare(args []string) {
	c := newCommand("prepare")
	c.splitFlags()
	c.dataFlags()
	c.parse(args)

	report, err := yoloprep.Prepare(yoloprep.Options{
		SourceDir:     c.cfg.Split.SourceDir,
		TrainFraction: c.cfg.Split.TrainFraction,
		Split:         c.splitterConfig(),
		ClassesPath:   c.cfg.Data.ClassesPath,
		OutputPath:    c.cfg.Data.OutputPath,
		DatasetRoot:   c.cfg.Data.DatasetRoot,
	})
	if err != nil {
		log.Fatal(err)
	}
	printJSON(report.Split)
}

func runLabel(args []string) {
	c := newCommand("label")
	l := &c.cfg.Labeler
	c.fs.StringVar(&c.cfg.Split.SourceDir, "source", c.cfg.Split.SourceDir, "source dataset directory containing images/ and labels/")
	c.fs.StringVar(&c.cfg.Data.ClassesPath, "classes", c.cfg.Data.ClassesPath, "class list, one name per line")
	c.fs.StringVar(&l.Backend, "backend", l.Backend, "backend to use: ollama or llamacpp")
	c.fs.StringVar(&l.URL, "url", l.URL, "server URL (defaults: ollama="+ollama.DefaultURL+", llamacpp="+llamacpp.DefaultURL+")")
	c.fs.StringVar(&l.Model, "model", l.Model, "vision model name")
	c.fs.Float64Var(&l.MinConfidence, "min-conf", l.MinConfidence, "minimum detection confidence (0-1)")
	c.fs.IntVar(&l.MaxImageSize, "sendsize", l.MaxImageSize, "max long side sent to the model (px), 0=original")
	c.fs.IntVar(&l.JPEGQuality, "sendq", l.JPEGQuality, "JPEG quality of the image sent to the model (1-100)")
	dryRun := c.fs.Bool("dry-run", false, "report proposed labels without writing files")
	skipCheck := c.fs.Bool("skip-check", false, "do not query the model once before labelling")
	c.parse(args)

	classes, err := dataconfig.ReadClasses(c.cfg.Data.ClassesPath)
	if err != nil {
		log.Fatal(err)
	}

	visionClient, err := newVisionClient(l.Backend, l.URL)
	if err != nil {
		log.Fatal(err)
	}

	lb := labeler.New(visionClient, labeler.Config{
		Model:         l.Model,
		MinConfidence: l.MinConfidence,
		MaxImageSize:  l.MaxImageSize,
		JPEGQuality:   l.JPEGQuality,
		Extensions:    c.cfg.Split.Extensions,
		DryRun:        *dryRun,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !*skipCheck {
		answer, err := lb.CheckModel(ctx)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("%s backend ready, model %s answered %q", l.Backend, l.Model, answer)
	}

	result, err := lb.LabelDataset(ctx, c.cfg.Split.SourceDir, classes)
	if err != nil {
		log.Fatal(err)
	}
	printJSON(result)
}

// newVisionClient creates the client for a labeler backend
func newVisionClient(backend, url string) (client.VisionClient, error) {
	switch backend {
	case config.BackendOllama:
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
	}
}

// inspectReport summarises a data.yaml and the images it points at
type inspectReport struct {
	Config dataconfig.DatasetConfig `json:"config"`
	Counts map[string]int           `json:"counts"`
}

func runInspect(args []string) {
	c := newCommand("inspect")
	c.fs.StringVar(&c.cfg.Data.OutputPath, "data", c.cfg.Data.OutputPath, "data.yaml to inspect")
	c.parse(args)

	cfg, err := dataconfig.Load(c.cfg.Data.OutputPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%s: %v", c.cfg.Data.OutputPath, err)
	}

	imageExts := splitter.NewWithConfig(c.splitterConfig()).Extensions()
	report := inspectReport{Config: cfg, Counts: map[string]int{}}
	for _, subset := range types.Subsets {
		for _, kind := range []string{splitter.ImagesDir, splitter.LabelsDir} {
			dir := filepath.Join(cfg.Path, string(subset), kind)
			exts := imageExts
			if kind == splitter.LabelsDir {
				exts = []string{"txt"}
			}
			files, err := utils.ListFiles(dir, exts)
			if err != nil {
				log.Fatal(err)
			}
			report.Counts[string(subset)+"/"+kind] = len(files)
		}
	}
	printJSON(report)
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	out := fs.String("out", config.GetConfigPath(), "where to write the config file")
	_ = fs.Parse(args)

	if utils.FileExists(*out) {
		log.Fatalf("%s already exists", *out)
	}
	if err := config.Default().SaveToFile(*out); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", *out)
}

func printJSON(v any) {
	js, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(js))
}

// listFlag is a comma separated list of values
type listFlag []string

func (l *listFlag) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(v string) error {
	*l = nil
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}
