package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/yolo-prep/pkg/types"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://localhost:11434/api/chat")
	require.NoError(t, err)
	assert.NotNil(t, c)

	c, err = NewClient("")
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewClient("ftp://localhost")
	assert.Error(t, err)
}

// newChatServer answers /api/chat with reply and records the last request
func newChatServer(t *testing.T, reply string, got *api.ChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   got.Model,
			Message: api.Message{Role: "assistant", Content: reply},
			Done:    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSimpleQuery(t *testing.T) {
	var got api.ChatRequest
	srv := newChatServer(t, "OK", &got)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	img := base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))
	answer, err := c.SimpleQuery(context.Background(), "qwen2.5vl:7b", "Reply OK", img)
	require.NoError(t, err)
	assert.Equal(t, "OK", answer)

	assert.Equal(t, "qwen2.5vl:7b", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Reply OK", got.Messages[0].Content)
	require.Len(t, got.Messages[0].Images, 1)
	assert.Equal(t, []byte("jpeg bytes"), []byte(got.Messages[0].Images[0]))
	assert.Empty(t, got.Format)
}

func TestDetectObjects(t *testing.T) {
	var got api.ChatRequest
	srv := newChatServer(t, `{"objects":[{"label":"cat","confidence":0.9,"box":{"x":0.1,"y":0.2,"w":0.3,"h":0.4}}],"description":"a cat"}`, &got)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	result, err := c.DetectObjects(context.Background(), "m", "find cats", base64.StdEncoding.EncodeToString([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, []types.Detection{
		{Label: "cat", Confidence: 0.9, Box: types.Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}},
	}, result.Objects)
	assert.JSONEq(t, `"json"`, string(got.Format))
}

func TestDetectObjectsBadImage(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)

	_, err = c.DetectObjects(context.Background(), "m", "p", "not base64!")
	assert.Error(t, err)
}
