package types

// Box represents a normalized bounding box with coordinates in [0,1] range.
// X and Y are the top-left corner.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the normalized center of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Detection is a single object reported by a vision model
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// DetectionResult contains the complete response from the vision model
type DetectionResult struct {
	Objects     []Detection `json:"objects"`
	Description string      `json:"description"`
}

// Subset names a partition of the prepared dataset
type Subset string

const (
	Train      Subset = "train"
	Validation Subset = "validation"
)

// Subsets lists the partitions in the order they are filled
var Subsets = []Subset{Train, Validation}

// SplitResult reports what a split run copied
type SplitResult struct {
	ImageCount      int   `json:"image_count"`
	LabelCount      int   `json:"label_count"`
	TrainCount      int   `json:"train_count"`
	ValCount        int   `json:"val_count"`
	BackgroundCount int   `json:"background_count"`
	Skipped         int   `json:"skipped"`
	Bytes           int64 `json:"bytes"`
}
