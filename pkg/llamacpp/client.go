// Package llamacpp talks to a llama.cpp server through its OpenAI-compatible
// chat completion endpoint.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/yolo-prep/pkg/client"
	"github.com/menta2k/yolo-prep/pkg/types"
)

// DefaultURL is where llama-server listens by default
const DefaultURL = "http://localhost:8080"

const (
	chatEndpoint   = "/v1/chat/completions"
	requestTimeout = 300 * time.Second
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Message is an OpenAI-compatible chat message. Content is a string or []ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// ResponseFormat constrains the reply; llama-server maps json_object to a JSON grammar
type ResponseFormat struct {
	Type string `json:"type"`
}

type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// NewClient creates a llama.cpp client. A trailing /v1/chat/completions is tolerated.
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %q", parsedURL.Scheme)
	}

	base := strings.TrimSuffix(serverURL, "/")
	base = strings.TrimSuffix(base, chatEndpoint)

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// SimpleQuery sends a prompt with an image and returns the raw answer
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.complete(ctx, model, prompt, imgB64, nil)
}

// DetectObjects asks the model for objects in the image and parses its JSON answer
func (c *Client) DetectObjects(ctx context.Context, model, prompt, imgB64 string) (*types.DetectionResult, error) {
	text, err := c.complete(ctx, model, prompt, imgB64, &ResponseFormat{Type: "json_object"})
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("empty response from llama.cpp server")
	}

	return client.ParseDetectionResult(text)
}

func (c *Client) complete(ctx context.Context, model, prompt, imgB64 string, format *ResponseFormat) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	content := []ContentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		content = append(content, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + imgB64},
		})
	}

	req := ChatCompletionRequest{
		Model:          model,
		Messages:       []Message{{Role: "user", Content: content}},
		Temperature:    0.1,
		MaxTokens:      4096,
		ResponseFormat: format,
	}

	body, err := c.sendRequest(ctx, chatEndpoint, req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return messageText(resp.Choices[0].Message.Content), nil
}

// messageText extracts the first text from a string or content-part answer
func messageText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if part, ok := item.(map[string]any); ok {
				if text, ok := part["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
