package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/genewire/genewire/pkg/config"
	"github.com/genewire/genewire/pkg/repository"
)

// ErrQuotaExceeded signals the API rejected the request for billing/quota
// reasons, distinct from transient or generic failures
var ErrQuotaExceeded = errors.New("llm quota exceeded")

// target audience baked into every prompt, matches the newsletter's readership
const targetAudience = "15-year-old high school student with a good foundation in basic biology"

// Generator produces article and digest summaries via an OpenAI-compatible API
type Generator struct {
	client *openai.Client
	cfg    config.LLMConfig
}

// NewGenerator creates a new summary generator
func NewGenerator(cfg config.LLMConfig) *Generator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}
}

// GenerateDailyOverview creates the day's overview text from the top articles
func (g *Generator) GenerateDailyOverview(ctx context.Context, articles []repository.Article) (string, error) {
	var sb strings.Builder
	for _, article := range articles {
		sb.WriteString(fmt.Sprintf("Title: %s\nSummary: %s\nSource: %s\n\n", article.Title, article.Summary, article.Source))
	}

	prompt := fmt.Sprintf(`You are an expert science educator writing for a %s.

Below are the top synthetic biology articles from the past 24 hours. Create a comprehensive daily summary that:

1. Explains the major themes and breakthroughs in simple terms
2. Uses basic biology terminology that a high school student would understand
3. Highlights the most important discoveries and their potential impact
4. Makes complex concepts accessible and engaging

Articles:
%s`, targetAudience, sb.String())

	return g.complete(ctx, completionRequest{
		system:      "You are a science educator who specializes in making complex synthetic biology concepts accessible to high school students. Write in clear, engaging language that builds excitement for science.",
		user:        prompt,
		model:       g.cfg.Model,
		temperature: g.cfg.Temperature,
		maxTokens:   g.cfg.MaxTokens,
	})
}

// GenerateTopSummary creates the per-article digest text for the top articles.
// Output format is one "Title: summary" block per article so per-article
// summaries can later be recovered without another API call.
func (g *Generator) GenerateTopSummary(ctx context.Context, articles []repository.Article) (string, error) {
	var sb strings.Builder
	for i, article := range articles {
		sb.WriteString(fmt.Sprintf("%d. %s\n   %s\n   Source: %s\n\n", i+1, article.Title, article.Summary, article.Source))
	}

	prompt := fmt.Sprintf(`You are an expert science educator writing for a %s.

Below are today's top synthetic biology articles. For each article write one block in the exact form:

<Article Title>: <2-3 sentence summary>

Keep each summary between 50 and 500 characters, use the article titles verbatim, and separate blocks with a blank line. Use simple language that a high school student can understand and make the science exciting and relevant.

Top Articles:
%s`, targetAudience, sb.String())

	return g.complete(ctx, completionRequest{
		system:      "You are a science educator who makes synthetic biology exciting and accessible to high school students. Focus on the wonder and potential of these discoveries.",
		user:        prompt,
		model:       g.cfg.Model,
		temperature: g.cfg.Temperature,
		maxTokens:   g.cfg.MaxTokens,
	})
}

// GenerateArticleSummary creates a one-off summary for a single article using
// the production model
func (g *Generator) GenerateArticleSummary(ctx context.Context, article *repository.Article) (string, error) {
	return g.GenerateArticleSummaryWith(ctx, article, g.cfg.Model, g.cfg.Temperature, g.cfg.MaxTokens)
}

// GenerateArticleSummaryWith creates a single-article summary with explicit
// model parameters, used for advanced-model comparison summaries
func (g *Generator) GenerateArticleSummaryWith(ctx context.Context, article *repository.Article, model string, temperature float64, maxTokens int) (string, error) {
	content := article.Content
	if content == "" {
		content = article.Summary
	}

	prompt := fmt.Sprintf(`You are an expert science educator writing for a %s.

Please simplify and explain this scientific article in a way that a high school student would understand:

Title: %s
Content: %s

Requirements:
1. Use simple, clear language
2. Explain complex terms when they appear
3. Focus on the main findings and their importance
4. Keep it concise (2-3 paragraphs)`, targetAudience, article.Title, content)

	summary, err := g.complete(ctx, completionRequest{
		system:      "You are a science educator who specializes in making complex scientific concepts accessible to high school students. Write clearly and engagingly.",
		user:        prompt,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(summary) == "" {
		return "", fmt.Errorf("generated summary is empty")
	}
	return summary, nil
}

// completionRequest carries per-call parameters for a chat completion
type completionRequest struct {
	system      string
	user        string
	model       string
	temperature float64
	maxTokens   int
}

// complete performs one chat completion call
func (g *Generator) complete(ctx context.Context, req completionRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.model,
		Temperature: float32(req.temperature),
		MaxTokens:   req.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.system},
			{Role: openai.ChatMessageRoleUser, Content: req.user},
		},
	})
	if err != nil {
		if isQuotaError(err) {
			return "", fmt.Errorf("llm request failed: %w", ErrQuotaExceeded)
		}
		return "", fmt.Errorf("llm request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from llm")
	}
	return resp.Choices[0].Message.Content, nil
}

// isQuotaError detects billing/quota rejections from the API
func isQuotaError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return true
		}
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
	}
	return false
}
