package client

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/yolo-prep/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseDetectionResult decodes a model answer. Answers that contain no JSON
// object yield an empty result rather than an error so the image stays unlabelled.
func ParseDetectionResult(raw string) (*types.DetectionResult, error) {
	raw = sanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return &types.DetectionResult{Description: "model returned non-JSON response"}, nil
	}

	var result types.DetectionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	return &result, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from a JSON answer
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
