package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL), WithModel("gemini-test"))
	require.NoError(t, err)
	return client
}

func TestGenerate(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "Momentum "}, {"text": "is positive."}]}, "finishReason": "STOP"}]}`))
	})

	text, err := client.Generate(context.Background(), "Summarise MSFT", interfaces.GenerateOptions{System: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "Momentum is positive.", text)
	assert.True(t, strings.HasSuffix(gotPath, "models/gemini-test:generateContent"), "path %s", gotPath)
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": []}`))
	})

	_, err := client.Generate(context.Background(), "hi", interfaces.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrProvider))
	assert.False(t, errors.Is(err, common.ErrRateLimited))
}

func TestGenerate_QuotaExhausted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "message": "Resource has been exhausted", "status": "RESOURCE_EXHAUSTED"}}`))
	})

	_, err := client.Generate(context.Background(), "hi", interfaces.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRateLimited), "got %v", err)
}

func TestGenerateAsync_DeliversOneResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "ok"}]}}]}`))
	})

	ch := client.GenerateAsync(context.Background(), "hi", interfaces.GenerateOptions{})
	result := <-ch
	require.NoError(t, result.Err)
	assert.Equal(t, "ok", result.Text)

	_, open := <-ch
	assert.False(t, open)
}

func TestBuildConfig_Defaults(t *testing.T) {
	c := &Client{model: DefaultModel, maxTokens: DefaultMaxTokens, temperature: DefaultTemperature}

	cfg := c.buildConfig(interfaces.GenerateOptions{})
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, DefaultTemperature, float64(*cfg.Temperature), 1e-6)
	assert.EqualValues(t, DefaultMaxTokens, cfg.MaxOutputTokens)
	assert.Nil(t, cfg.SystemInstruction)

	cfg = c.buildConfig(interfaces.GenerateOptions{System: "sys", Temperature: 0.2, MaxTokens: 50})
	assert.InDelta(t, 0.2, float64(*cfg.Temperature), 1e-6)
	assert.EqualValues(t, 50, cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
}
