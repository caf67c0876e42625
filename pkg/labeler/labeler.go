// Package labeler proposes YOLO annotations for unlabelled images using a
// vision-language model. Images with no accepted detection stay background.
package labeler

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/yolo-prep/internal/utils"
	"github.com/menta2k/yolo-prep/pkg/client"
	"github.com/menta2k/yolo-prep/pkg/imagecheck"
	"github.com/menta2k/yolo-prep/pkg/splitter"
	"github.com/menta2k/yolo-prep/pkg/types"
)

// promptTemplate is filled with the comma separated class list
const promptTemplate = `You are an object detector producing training annotations.

Allowed labels: %s

Return JSON only:
{
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence"
}

HARD RULES
- Only report objects whose label is one of the allowed labels, spelled exactly as given.
- box x,y is the top-left corner; all coordinates are normalized to [0,1] (NOT pixels).
- Boxes must tightly enclose each object.
- If none of the allowed objects is visible return {"objects": [], "description": "..."}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

const checkPrompt = "Reply with the single word OK."

// Config holds configuration for the labeler
type Config struct {
	Model         string
	MinConfidence float64
	// MaxImageSize is the long side in pixels sent to the model, 0 keeps the original
	MaxImageSize int
	JPEGQuality  int
	// Extensions is the image allow-list; empty means DefaultImageExtensions
	Extensions []string
	// DryRun reports proposed labels without writing files
	DryRun bool
}

// DefaultConfig returns the default labeler configuration
func DefaultConfig() Config {
	return Config{
		Model:         "qwen2.5vl:7b",
		MinConfidence: 0.5,
		MaxImageSize:  1024,
		JPEGQuality:   85,
		Extensions:    append([]string(nil), utils.DefaultImageExtensions...),
	}
}

// Result summarises a labelling run
type Result struct {
	Candidates int
	Labelled   int
	Background int
	Failed     int
	Boxes      int
}

// Labeler writes YOLO label files for images that have none
type Labeler struct {
	client  client.VisionClient
	config  Config
	checker *imagecheck.Checker
	logger  *log.Logger
}

// New creates a Labeler backed by a vision client
func New(client client.VisionClient, config Config) *Labeler {
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = 85
	}
	if len(config.Extensions) == 0 {
		config.Extensions = append([]string(nil), utils.DefaultImageExtensions...)
	}
	return &Labeler{
		client:  client,
		config:  config,
		checker: imagecheck.New(),
		logger:  log.Default(),
	}
}

// SetLogger replaces the logger used for progress output
func (l *Labeler) SetLogger(logger *log.Logger) {
	l.logger = logger
}

// Prompt returns the detection prompt for a class list
func Prompt(classes []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(classes, ", "))
}

// CheckModel sends a short prompt with a blank image so that an unreachable
// server or a missing model fails before any image is visited.
func (l *Labeler) CheckModel(ctx context.Context) (string, error) {
	imgB64, err := l.prepareImage(image.NewGray(image.Rect(0, 0, 32, 32)))
	if err != nil {
		return "", err
	}

	answer, err := l.client.SimpleQuery(ctx, l.config.Model, checkPrompt, imgB64)
	if err != nil {
		return "", fmt.Errorf("model %s is not usable: %w", l.config.Model, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("model %s returned an empty answer", l.config.Model)
	}
	return answer, nil
}

// LabelDataset visits sourceDir/images and labels every image without an
// annotation. Model failures are logged and counted; cancellation stops the run.
func (l *Labeler) LabelDataset(ctx context.Context, sourceDir string, classes []string) (Result, error) {
	var result Result

	if err := splitter.ValidateSource(sourceDir); err != nil {
		return result, err
	}
	if len(classes) == 0 {
		return result, fmt.Errorf("no classes to label")
	}

	imageDir := filepath.Join(sourceDir, splitter.ImagesDir)
	labelDir := filepath.Join(sourceDir, splitter.LabelsDir)

	images, err := utils.ListFiles(imageDir, l.config.Extensions)
	if err != nil {
		return result, fmt.Errorf("failed to list images: %w", err)
	}

	for _, imgPath := range images {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, ok := splitter.FindLabel(imageDir, labelDir, imgPath); ok {
			continue
		}
		result.Candidates++

		lines, err := l.LabelImage(ctx, imgPath, classes)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			l.logger.Printf("label %s failed: %v", imgPath, err)
			result.Failed++
			continue
		}

		if len(lines) == 0 {
			result.Background++
			continue
		}

		result.Labelled++
		result.Boxes += len(lines)

		out := splitter.LabelPath(imageDir, labelDir, imgPath)
		if l.config.DryRun {
			l.logger.Printf("would write %s (%d boxes)", out, len(lines))
			continue
		}
		if err := writeLabel(out, lines); err != nil {
			return result, err
		}
		l.logger.Printf("wrote %s (%d boxes)", out, len(lines))
	}

	return result, nil
}

// LabelImage asks the model for objects in one image and returns YOLO label lines
func (l *Labeler) LabelImage(ctx context.Context, imgPath string, classes []string) ([]string, error) {
	img, err := l.checker.Load(imgPath)
	if err != nil {
		return nil, err
	}

	imgB64, err := l.prepareImage(img)
	if err != nil {
		return nil, err
	}

	result, err := l.client.DetectObjects(ctx, l.config.Model, Prompt(classes), imgB64)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return ToYOLO(result.Objects, classes, l.config.MinConfidence, bounds.Dx(), bounds.Dy()), nil
}

// prepareImage down-scales img and encodes it as base64 JPEG
func (l *Labeler) prepareImage(img image.Image) (string, error) {
	if maxDim := l.config.MaxImageSize; maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(l.config.JPEGQuality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ToYOLO converts detections to "<class> <cx> <cy> <w> <h>" lines. Detections
// with unknown labels, low confidence, or an empty box are dropped. Labels
// match class names case-insensitively; the first occurrence of a class wins.
func ToYOLO(objects []types.Detection, classes []string, minConfidence float64, imgW, imgH int) []string {
	index := make(map[string]int, len(classes))
	for i, name := range classes {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}

	var lines []string
	for _, obj := range objects {
		idx, ok := index[strings.ToLower(strings.TrimSpace(obj.Label))]
		if !ok || obj.Confidence < minConfidence {
			continue
		}

		box := normalizeBox(obj.Box, imgW, imgH)
		if box.W <= 0 || box.H <= 0 {
			continue
		}

		cx, cy := box.Center()
		lines = append(lines, fmt.Sprintf("%d %.6f %.6f %.6f %.6f", idx, cx, cy, box.W, box.H))
	}
	return lines
}

// normalizeBox converts pixel boxes to [0,1] and clips the box to the image
func normalizeBox(b types.Box, imgW, imgH int) types.Box {
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x0, y0 := clamp(b.X, 0, 1), clamp(b.Y, 0, 1)
	x1, y1 := clamp(b.X+b.W, 0, 1), clamp(b.Y+b.H, 0, 1)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func writeLabel(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create label directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create label file: %w", err)
	}
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write label file: %w", err)
	}
	return f.Close()
}
