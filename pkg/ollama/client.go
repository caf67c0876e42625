package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/yolo-prep/pkg/client"
	"github.com/menta2k/yolo-prep/pkg/types"
)

// DefaultURL is where a local Ollama server listens
const DefaultURL = "http://localhost:11434"

// requestTimeout bounds a single model call when the caller sets no deadline
const requestTimeout = 300 * time.Second

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client. Any path in ollamaURL (e.g. /api/chat) is ignored.
func NewClient(ollamaURL string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}

	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %q", parsedURL.Scheme)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// SimpleQuery sends a prompt with an image and returns the raw answer
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.chat(ctx, model, prompt, imgB64, nil)
}

// DetectObjects asks the model for objects in the image and parses its JSON answer
func (c *Client) DetectObjects(ctx context.Context, model, prompt, imgB64 string) (*types.DetectionResult, error) {
	content, err := c.chat(ctx, model, prompt, imgB64, json.RawMessage(`"json"`))
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	return client.ParseDetectionResult(content)
}

func (c *Client) chat(ctx context.Context, model, prompt, imgB64 string, format json.RawMessage) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 image: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &stream,
		Format: format,
		Options: map[string]any{
			"temperature": 0.1,
		},
	}

	var content strings.Builder
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}

	return content.String(), nil
}
