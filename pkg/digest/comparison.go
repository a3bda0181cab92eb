package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/genewire/genewire/pkg/config"
	"github.com/genewire/genewire/pkg/repository"
)

// fixed presentation labels, side A always carries the production model's
// summary and side B the advanced model's
const (
	labelCurrentModel  = "Current Model"
	labelAdvancedModel = "Advanced Model"
)

// ErrInvalidPreference is returned when a preference value is not A or B
var ErrInvalidPreference = errors.New("preference must be A or B")

// ErrInsufficientArticles is returned when a session cannot be built because
// no usable article summaries exist for the digest
var ErrInsufficientArticles = errors.New("insufficient articles for comparison")

// ComparisonStore persists comparison sessions
type ComparisonStore interface {
	CreateComparisons(ctx context.Context, comparisons []repository.Comparison) error
	GetComparison(ctx context.Context, sessionID string, order int) (*repository.ComparisonWithArticle, error)
	CountComparisons(ctx context.Context, sessionID string) (int, error)
	UpdatePreference(ctx context.Context, sessionID string, order int, preference string) error
	GetSessionComparisons(ctx context.Context, sessionID string) ([]repository.ComparisonWithArticle, error)
}

// ArticleStore provides stored articles
type ArticleStore interface {
	GetArticle(ctx context.Context, id int64) (*repository.Article, error)
	GetArticlesByIDs(ctx context.Context, ids []int64, limit int) ([]repository.Article, error)
}

// SummaryStore provides stored daily digests
type SummaryStore interface {
	GetDailySummary(ctx context.Context, id int64) (*repository.DailySummary, error)
}

// SettingStore resolves runtime model overrides
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	GetFloatSetting(ctx context.Context, key string, fallback float64) (float64, error)
	GetIntSetting(ctx context.Context, key string, fallback int) (int, error)
}

// SummaryGenerator produces article summaries via the LLM
type SummaryGenerator interface {
	GenerateArticleSummary(ctx context.Context, article *repository.Article) (string, error)
	GenerateArticleSummaryWith(ctx context.Context, article *repository.Article, model string, temperature float64, maxTokens int) (string, error)
}

// Engine runs blind A/B comparison sessions: for up to three digest articles
// it pairs the production summary with one freshly generated by a stronger
// model and records which side the reader prefers
type Engine struct {
	comparisons ComparisonStore
	articles    ArticleStore
	summaries   SummaryStore
	settings    SettingStore
	generator   SummaryGenerator
	extractor   *Extractor
	cfg         config.LLMConfig
}

// NewEngine creates a comparison engine
func NewEngine(comparisons ComparisonStore, articles ArticleStore, summaries SummaryStore,
	settings SettingStore, generator SummaryGenerator, cfg config.LLMConfig) *Engine {
	return &Engine{
		comparisons: comparisons,
		articles:    articles,
		summaries:   summaries,
		settings:    settings,
		generator:   generator,
		extractor:   NewExtractor(),
		cfg:         cfg,
	}
}

// Session describes a freshly created comparison session
type Session struct {
	SessionID            string    `json:"session_id"`
	RecipientID          string    `json:"recipient_id"`
	SummaryID            int64     `json:"summary_id"`
	TotalComparisons     int       `json:"total_comparisons"`
	CompletedComparisons int       `json:"completed_comparisons"`
	CreatedAt            time.Time `json:"created_at"`
}

// SummaryOption is one side of an A/B round
type SummaryOption struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Label   string `json:"label"`
}

// ArticleInfo is the article metadata shown with a round
type ArticleInfo struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
}

// ComparisonData is one round as presented to the reader
type ComparisonData struct {
	SessionID       string        `json:"session_id"`
	ComparisonOrder int           `json:"comparison_order"`
	Article         ArticleInfo   `json:"article"`
	SummaryA        SummaryOption `json:"summary_a"`
	SummaryB        SummaryOption `json:"summary_b"`
	IsComplete      bool          `json:"is_complete"`
}

// PreferenceResult tells the caller where to go after recording a vote
type PreferenceResult struct {
	NextOrder  int  `json:"next_order,omitempty"`
	IsComplete bool `json:"is_complete"`
}

// SessionRound is one completed or pending round in a session summary
type SessionRound struct {
	ComparisonOrder int    `json:"comparison_order"`
	ArticleTitle    string `json:"article_title"`
	UserPreference  string `json:"user_preference,omitempty"`
	SelectedModel   string `json:"selected_model,omitempty"`
}

// SessionSummary is the state of a whole session
type SessionSummary struct {
	SessionID            string         `json:"session_id"`
	RecipientID          string         `json:"recipient_id"`
	SummaryID            int64          `json:"summary_id"`
	Comparisons          []SessionRound `json:"comparisons"`
	TotalComparisons     int            `json:"total_comparisons"`
	CompletedComparisons int            `json:"completed_comparisons"`
	CreatedAt            time.Time      `json:"created_at"`
}

// comparisonParams are the resolved model settings for one session
type comparisonParams struct {
	currentModel  string
	advancedModel string
	temperature   float64
	maxTokens     int
}

// CreateSession builds a new comparison session for a recipient and digest.
// Per-article summaries are recovered from the stored digest text when the
// extraction is good enough, otherwise regenerated with the production model.
func (e *Engine) CreateSession(ctx context.Context, recipientID string, summaryID int64) (*Session, error) {
	summary, err := e.summaries.GetDailySummary(ctx, summaryID)
	if err != nil {
		return nil, fmt.Errorf("get daily summary %d: %w", summaryID, err)
	}

	articles, err := e.articles.GetArticlesByIDs(ctx, summary.ArticleIDs, 10)
	if err != nil {
		return nil, fmt.Errorf("get summary articles: %w", err)
	}
	if len(articles) == 0 {
		return nil, ErrInsufficientArticles
	}

	params := e.resolveParams(ctx)

	articleSummaries, method := e.articleSummaries(ctx, summary, articles)
	if len(articleSummaries) == 0 {
		return nil, ErrInsufficientArticles
	}

	// up to three rounds per session, fewer when fewer articles are usable
	rounds := len(articleSummaries)
	if rounds > 3 {
		rounds = 3
	}
	toCompare := articleSummaries[:rounds]

	sessionID := uuid.New().String()
	records := make([]repository.Comparison, rounds)

	g, gctx := errgroup.WithContext(ctx)
	for i, as := range toCompare {
		i, as := i, as
		g.Go(func() error {
			records[i] = repository.Comparison{
				SessionID:        sessionID,
				RecipientID:      recipientID,
				SummaryID:        summaryID,
				ArticleID:        as.ArticleID,
				CurrentSummary:   as.Summary,
				AdvancedSummary:  e.advancedSummary(gctx, as.ArticleID, params),
				CurrentModel:     params.currentModel,
				AdvancedModel:    params.advancedModel,
				ComparisonOrder:  i + 1,
				ExtractionMethod: method,
			}
			return nil
		})
	}
	_ = g.Wait() // branches never fail, advanced generation degrades to fallback text

	if err := e.comparisons.CreateComparisons(ctx, records); err != nil {
		return nil, fmt.Errorf("create comparison records: %w", err)
	}

	log.Printf("[INFO] created comparison session %s with %d rounds (%s) for recipient %s",
		sessionID, rounds, method, recipientID)

	return &Session{
		SessionID:        sessionID,
		RecipientID:      recipientID,
		SummaryID:        summaryID,
		TotalComparisons: rounds,
		CreatedAt:        time.Now(),
	}, nil
}

// articleSummaries recovers per-article summaries from the digest text, or
// regenerates them when extraction does not hold up
func (e *Engine) articleSummaries(ctx context.Context, summary *repository.DailySummary, articles []repository.Article) ([]ArticleSummary, string) {
	if strings.TrimSpace(summary.Top10Summary) != "" {
		extracted := e.extractor.ExtractSummaries(summary.Top10Summary)
		if e.extractor.ValidateExtraction(extracted) {
			mapped := e.extractor.MapToArticles(extracted, articles)
			if len(mapped) > 0 {
				log.Printf("[DEBUG] extracted %d article summaries from digest %d", len(mapped), summary.ID)
				return mapped, "extracted"
			}
		}
	}

	log.Printf("[DEBUG] extraction unusable for digest %d, generating summaries", summary.ID)

	top := articles
	if len(top) > 3 {
		top = top[:3]
	}

	var generated []ArticleSummary
	for i := range top {
		text, err := e.generator.GenerateArticleSummary(ctx, &top[i])
		if err != nil {
			log.Printf("[WARN] summary generation failed for article %d: %v", top[i].ID, err)
			continue
		}
		generated = append(generated, ArticleSummary{
			ArticleID: top[i].ID,
			Title:     top[i].Title,
			Source:    top[i].Source,
			Published: top[i].Published,
			Summary:   text,
		})
	}
	return generated, "generated"
}

// advancedSummary generates the stronger model's summary for one article.
// Failures degrade to a visible placeholder so the session still completes.
func (e *Engine) advancedSummary(ctx context.Context, articleID int64, params comparisonParams) string {
	article, err := e.articles.GetArticle(ctx, articleID)
	if err != nil {
		log.Printf("[WARN] advanced summary: article %d not found: %v", articleID, err)
		return fmt.Sprintf("Summary generation failed for this article. Error: %v", err)
	}

	text, err := e.generator.GenerateArticleSummaryWith(ctx, article, params.advancedModel, params.temperature, params.maxTokens)
	if err != nil {
		log.Printf("[WARN] advanced summary generation failed for article %d: %v", articleID, err)
		return fmt.Sprintf("Summary generation failed for this article. Error: %v", err)
	}
	return text
}

// resolveParams reads model overrides from settings, falling back to the
// configured comparison defaults
func (e *Engine) resolveParams(ctx context.Context) comparisonParams {
	params := comparisonParams{
		currentModel:  e.cfg.Model,
		advancedModel: e.cfg.Comparison.Model,
		temperature:   e.cfg.Comparison.Temperature,
		maxTokens:     e.cfg.Comparison.MaxTokens,
	}

	if v, err := e.settings.GetSetting(ctx, repository.SettingCurrentModel); err == nil && v != "" {
		params.currentModel = v
	}
	if v, err := e.settings.GetSetting(ctx, repository.SettingComparisonModel); err == nil && v != "" {
		params.advancedModel = v
	}
	if v, err := e.settings.GetFloatSetting(ctx, repository.SettingComparisonTemperature, params.temperature); err == nil {
		params.temperature = v
	}
	if v, err := e.settings.GetIntSetting(ctx, repository.SettingComparisonMaxTokens, params.maxTokens); err == nil {
		params.maxTokens = v
	}
	return params
}

// GetComparisonData returns one round for presentation
func (e *Engine) GetComparisonData(ctx context.Context, sessionID string, order int) (*ComparisonData, error) {
	comparison, err := e.comparisons.GetComparison(ctx, sessionID, order)
	if err != nil {
		return nil, fmt.Errorf("get comparison %s/%d: %w", sessionID, order, err)
	}

	total, err := e.comparisons.CountComparisons(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count comparisons: %w", err)
	}

	return &ComparisonData{
		SessionID:       sessionID,
		ComparisonOrder: order,
		Article: ArticleInfo{
			ID:        comparison.ArticleID,
			Title:     comparison.ArticleTitle,
			Source:    comparison.ArticleSource,
			Published: comparison.ArticlePublished,
		},
		SummaryA:   SummaryOption{Content: comparison.CurrentSummary, Model: comparison.CurrentModel, Label: labelCurrentModel},
		SummaryB:   SummaryOption{Content: comparison.AdvancedSummary, Model: comparison.AdvancedModel, Label: labelAdvancedModel},
		IsComplete: order >= total,
	}, nil
}

// RecordPreference stores the reader's vote for one round. Re-voting a round
// overwrites the earlier vote.
func (e *Engine) RecordPreference(ctx context.Context, sessionID string, order int, preference string) (*PreferenceResult, error) {
	if preference != "A" && preference != "B" {
		return nil, ErrInvalidPreference
	}

	if err := e.comparisons.UpdatePreference(ctx, sessionID, order, preference); err != nil {
		return nil, fmt.Errorf("record preference %s/%d: %w", sessionID, order, err)
	}

	total, err := e.comparisons.CountComparisons(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count comparisons: %w", err)
	}

	result := &PreferenceResult{IsComplete: order >= total}
	if order < total {
		result.NextOrder = order + 1
	}
	return result, nil
}

// GetSessionSummary returns the state of every round in a session
func (e *Engine) GetSessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	comparisons, err := e.comparisons.GetSessionComparisons(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session comparisons: %w", err)
	}
	if len(comparisons) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, repository.ErrNotFound)
	}

	result := &SessionSummary{
		SessionID:        sessionID,
		RecipientID:      comparisons[0].RecipientID,
		SummaryID:        comparisons[0].SummaryID,
		TotalComparisons: len(comparisons),
		CreatedAt:        comparisons[0].CreatedAt,
		Comparisons:      make([]SessionRound, 0, len(comparisons)),
	}

	for _, c := range comparisons {
		round := SessionRound{
			ComparisonOrder: c.ComparisonOrder,
			ArticleTitle:    c.ArticleTitle,
		}
		if c.UserPreference.Valid {
			round.UserPreference = c.UserPreference.String
			if c.UserPreference.String == "A" {
				round.SelectedModel = c.CurrentModel
			} else {
				round.SelectedModel = c.AdvancedModel
			}
			result.CompletedComparisons++
		}
		result.Comparisons = append(result.Comparisons, round)
	}

	return result, nil
}
