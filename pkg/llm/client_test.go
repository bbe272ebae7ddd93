package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewClient(ClientConfig{
		Provider: "test",
		Model:    "test-model",
		APIKey:   "test-key",
		BaseURL:  ts.URL + "/v1",
	})
	require.NoError(t, err)
	return client
}

func completionResponse(content string) string {
	return `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": ` + strconvQuote(content) + `},
			"finish_reason": "stop"
		}]
	}`
}

func strconvQuote(s string) string {
	out := strings.ReplaceAll(s, `\`, `\\`)
	out = strings.ReplaceAll(out, `"`, `\"`)
	out = strings.ReplaceAll(out, "\n", `\n`)
	return `"` + out + `"`
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{APIKey: "k"})
	assert.Error(t, err)

	client, err := NewClient(ClientConfig{APIKey: "k", Model: "m"})
	require.NoError(t, err)
	provider, model := client.Describe()
	assert.Equal(t, "openai", provider, "provider defaults when unset")
	assert.Equal(t, "m", model)
}

func TestGenerateStatus(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse("Laying out the hero section...")))
	})

	status, err := client.GenerateStatus(context.Background(),
		"thinking about the hero section layout", reasoning.PhaseImplementing, "req-1")

	require.NoError(t, err)
	assert.Equal(t, "Laying out the hero section...", status)
	assert.Contains(t, gotBody, "test-model")
	assert.Contains(t, gotBody, "implementing")
	assert.Contains(t, gotBody, "hero section layout")
}

func TestGenerateStatusSanitizesResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse("\"Wiring up the form...\"\nHope that helps!")))
	})

	status, err := client.GenerateStatus(context.Background(),
		"text", reasoning.PhaseImplementing, "req-1")

	require.NoError(t, err)
	assert.Equal(t, "Wiring up the form...", status)
}

func TestGenerateStatusAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	})

	_, err := client.GenerateStatus(context.Background(),
		"text", reasoning.PhaseAnalyzing, "req-1")

	require.Error(t, err)
	assert.Equal(t, KindAPIError, KindOf(err))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "test", statusErr.Provider)
}

func TestGenerateStatusEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`))
	})

	_, err := client.GenerateStatus(context.Background(),
		"text", reasoning.PhaseAnalyzing, "req-1")

	require.Error(t, err)
	assert.Equal(t, KindInvalidResponse, KindOf(err))
}

func TestGenerateStatusEmptyContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse("   ")))
	})

	_, err := client.GenerateStatus(context.Background(),
		"text", reasoning.PhaseAnalyzing, "req-1")

	require.Error(t, err)
	assert.Equal(t, KindInvalidResponse, KindOf(err))
}

func TestGenerateStatusTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(completionResponse("too slow")))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GenerateStatus(ctx, "text", reasoning.PhaseAnalyzing, "req-1")

	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestGenerateFinalSummary(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse("Built a landing page with a responsive pricing table")))
	})

	summary, err := client.GenerateFinalSummary(context.Background(),
		"long reasoning history", "a landing page", "req-1")

	require.NoError(t, err)
	assert.Equal(t, "Built a landing page with a responsive pricing table", summary)
	assert.Contains(t, gotBody, "a landing page")
}

func TestTruncateTail(t *testing.T) {
	assert.Equal(t, "short", truncateTail("short", 100))
	assert.Equal(t, "cdef", truncateTail("abcdef", 4), "keeps the most recent tail")
	assert.Equal(t, "abc", truncateTail("abc", 3))
}

func TestSanitizeStatusLine(t *testing.T) {
	assert.Equal(t, "Plain line", sanitizeStatusLine("Plain line"))
	assert.Equal(t, "Quoted", sanitizeStatusLine(`"Quoted"`))
	assert.Equal(t, "First", sanitizeStatusLine("First\nSecond"))
	assert.Equal(t, "Trimmed", sanitizeStatusLine(`  'Trimmed'  `))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(NewStatusError(KindTimeout, "p", nil)))
	assert.Equal(t, KindUnknown, KindOf(context.Canceled))
	assert.Equal(t, KindUnknown, KindOf(nil))
}
