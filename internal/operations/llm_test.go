package operations

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/ports"
)

// completionsStub answers /chat/completions the way an OpenAI-compatible
// backend would and captures the decoded request body.
func completionsStub(t *testing.T, captured *map[string]any, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		})
	}))
}

func newLLMTestRunner(serverURL string) *LLMRunner {
	return NewLLMRunner(LLMOptions{
		APIKey:  "test-key",
		BaseURL: serverURL,
	}, domain.DefaultConfig(), nil)
}

func TestLLMRunner_TextGeneration(t *testing.T) {
	var captured map[string]any
	server := completionsStub(t, &captured, "a quiet river flows")
	defer server.Close()

	runner := newLLMTestRunner(server.URL)

	handle, err := runner.Submit(context.Background(), ports.OperationRequest{
		Kind:   ports.OperationLLMGenerate,
		System: "you are a poet",
		Prompt: "write a haiku",
		Model:  "gpt-4o",
	})
	require.NoError(t, err)

	update := awaitTerminal(t, runner, handle)
	assert.Equal(t, ports.OperationCompleted, update.State)
	assert.Equal(t, "a quiet river flows", update.Output)

	assert.Equal(t, "gpt-4o", captured["model"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)

	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "you are a poet", system["content"])

	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "write a haiku", user["content"])
}

func TestLLMRunner_ImageInputsBecomeMultiContent(t *testing.T) {
	var captured map[string]any
	server := completionsStub(t, &captured, "two cats")
	defer server.Close()

	runner := newLLMTestRunner(server.URL)

	handle, err := runner.Submit(context.Background(), ports.OperationRequest{
		Kind:   ports.OperationLLMGenerate,
		Prompt: "Analyze this image",
		Images: []string{"http://x/a.png", "http://x/b.png"},
	})
	require.NoError(t, err)

	update := awaitTerminal(t, runner, handle)
	require.Equal(t, ports.OperationCompleted, update.State)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)

	user := messages[0].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 3)

	text := parts[0].(map[string]any)
	assert.Equal(t, "text", text["type"])
	assert.Equal(t, "Analyze this image", text["text"])

	first := parts[1].(map[string]any)
	assert.Equal(t, "image_url", first["type"])
	assert.Equal(t, "http://x/a.png", first["image_url"].(map[string]any)["url"])
}

func TestLLMRunner_DefaultModel(t *testing.T) {
	var captured map[string]any
	server := completionsStub(t, &captured, "ok")
	defer server.Close()

	runner := newLLMTestRunner(server.URL)

	handle, err := runner.Submit(context.Background(), ports.OperationRequest{
		Kind:   ports.OperationLLMGenerate,
		Prompt: "hi",
	})
	require.NoError(t, err)

	update := awaitTerminal(t, runner, handle)
	require.Equal(t, ports.OperationCompleted, update.State)
	assert.Equal(t, DefaultModel, captured["model"])
}

func TestLLMRunner_BackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer server.Close()

	runner := newLLMTestRunner(server.URL)

	handle, err := runner.Submit(context.Background(), ports.OperationRequest{
		Kind:   ports.OperationLLMGenerate,
		Prompt: "hi",
	})
	require.NoError(t, err)

	update := awaitTerminal(t, runner, handle)
	assert.Equal(t, ports.OperationFailed, update.State)
	assert.Contains(t, update.Error, "model overloaded")
}

func TestLLMRunner_RejectsWrongKind(t *testing.T) {
	runner := newLLMTestRunner("http://unused")

	_, err := runner.Submit(context.Background(), ports.OperationRequest{Kind: ports.OperationMediaCrop})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot execute")
}
