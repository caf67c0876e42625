package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/yolo-prep/pkg/types"
)

func TestParseDetectionResult(t *testing.T) {
	want := &types.DetectionResult{
		Objects: []types.Detection{
			{Label: "cat", Confidence: 0.9, Box: types.Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}},
		},
		Description: "a cat",
	}

	tests := []struct {
		name string
		raw  string
	}{
		{"plain", `{"objects":[{"label":"cat","confidence":0.9,"box":{"x":0.1,"y":0.2,"w":0.3,"h":0.4}}],"description":"a cat"}`},
		{"fenced", "```json\n{\"objects\":[{\"label\":\"cat\",\"confidence\":0.9,\"box\":{\"x\":0.1,\"y\":0.2,\"w\":0.3,\"h\":0.4}}],\"description\":\"a cat\"}\n```"},
		{"trailing commas and comments", `Here you go:
{
  // detections
  "objects": [
    {"label": "cat", "confidence": 0.9, "box": {"x": 0.1, "y": 0.2, "w": 0.3, "h": 0.4},},
  ],
  /* short */
  "description": "a cat",
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDetectionResult(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseDetectionResultNonJSON(t *testing.T) {
	got, err := ParseDetectionResult("I can see a cat on a sofa.")
	require.NoError(t, err)
	assert.Empty(t, got.Objects)
}

func TestParseDetectionResultBroken(t *testing.T) {
	_, err := ParseDetectionResult(`{"objects": [ {"label": }`)
	assert.Error(t, err)
}
