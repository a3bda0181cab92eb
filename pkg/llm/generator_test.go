package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genewire/genewire/pkg/config"
	"github.com/genewire/genewire/pkg/repository"
)

// newTestGenerator starts a fake completion endpoint and a generator pointed at it
func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGenerator(config.LLMConfig{
		Endpoint:    server.URL + "/v1",
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1000,
	})
}

func completionResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerator_GenerateTopSummary(t *testing.T) {
	var captured openai.ChatCompletionRequest
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse( //nolint:errcheck // test server
			"CRISPR Advance: Scientists improved gene editing precision in human cells this week."))
	})

	articles := []repository.Article{
		{Title: "CRISPR Advance", Summary: "precision editing", Source: "PubMed"},
		{Title: "Synthetic Cell Milestone", Summary: "minimal genome", Source: "arXiv"},
	}

	result, err := gen.GenerateTopSummary(context.Background(), articles)
	require.NoError(t, err)
	assert.Contains(t, result, "CRISPR Advance:")

	// articles included in the prompt, production model used
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Contains(t, captured.Messages[1].Content, "1. CRISPR Advance")
	assert.Contains(t, captured.Messages[1].Content, "2. Synthetic Cell Milestone")
	assert.Contains(t, captured.Messages[1].Content, "Title")
}

func TestGenerator_GenerateArticleSummaryWith(t *testing.T) {
	t.Run("explicit model parameters forwarded", func(t *testing.T) {
		var captured openai.ChatCompletionRequest
		gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(completionResponse("an accessible summary")) //nolint:errcheck // test server
		})

		article := &repository.Article{Title: "Metabolic pathways", Content: "full article text"}
		summary, err := gen.GenerateArticleSummaryWith(context.Background(), article, "gpt-4o", 0.5, 300)
		require.NoError(t, err)
		assert.Equal(t, "an accessible summary", summary)

		assert.Equal(t, "gpt-4o", captured.Model)
		assert.InDelta(t, 0.5, captured.Temperature, 0.001)
		assert.Equal(t, 300, captured.MaxTokens)
		assert.Contains(t, captured.Messages[1].Content, "full article text")
	})

	t.Run("falls back to stored summary when content empty", func(t *testing.T) {
		var captured openai.ChatCompletionRequest
		gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(completionResponse("ok")) //nolint:errcheck // test server
		})

		article := &repository.Article{Title: "Thin article", Summary: "snippet only"}
		_, err := gen.GenerateArticleSummary(context.Background(), article)
		require.NoError(t, err)
		assert.Contains(t, captured.Messages[1].Content, "snippet only")
	})

	t.Run("empty generation is an error", func(t *testing.T) {
		gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(completionResponse("   ")) //nolint:errcheck // test server
		})

		_, err := gen.GenerateArticleSummary(context.Background(), &repository.Article{Title: "x", Content: "y"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})
}

func TestGenerator_QuotaErrors(t *testing.T) {
	t.Run("insufficient quota surfaces sentinel", func(t *testing.T) {
		gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)) //nolint:errcheck // test server
		})

		_, err := gen.GenerateDailyOverview(context.Background(), []repository.Article{{Title: "a"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrQuotaExceeded))
	})

	t.Run("generic failure is not quota", func(t *testing.T) {
		gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`)) //nolint:errcheck // test server
		})

		_, err := gen.GenerateDailyOverview(context.Background(), []repository.Article{{Title: "a"}})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrQuotaExceeded))
	})
}

func TestIsQuotaError(t *testing.T) {
	assert.False(t, isQuotaError(nil))
	assert.False(t, isQuotaError(errors.New("plain error")))
	assert.True(t, isQuotaError(&openai.APIError{Code: "insufficient_quota"}))
	assert.True(t, isQuotaError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.False(t, isQuotaError(&openai.APIError{HTTPStatusCode: http.StatusBadGateway, Code: "other"}))

	wrapped := fmt.Errorf("outer: %w", &openai.APIError{Code: "insufficient_quota"})
	assert.True(t, isQuotaError(wrapped))
}
