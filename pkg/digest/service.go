package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/genewire/genewire/pkg/repository"
)

// ErrNoArticles is returned when a digest run finds nothing relevant
var ErrNoArticles = errors.New("no relevant articles found")

// Searcher finds today's candidate articles
type Searcher interface {
	Search(ctx context.Context) ([]repository.Article, error)
}

// ArticleWriter persists found articles
type ArticleWriter interface {
	UpsertArticle(ctx context.Context, article *repository.Article) error
	DeleteArticlesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DigestStore persists daily summaries
type DigestStore interface {
	CreateDailySummary(ctx context.Context, summary *repository.DailySummary) error
	UpdateDailySummary(ctx context.Context, summary *repository.DailySummary) error
	GetDailySummaryByDate(ctx context.Context, date string) (*repository.DailySummary, error)
	MarkEmailSent(ctx context.Context, id int64) error
	DeleteDailySummariesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionCleaner removes abandoned comparison sessions
type SessionCleaner interface {
	DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// DigestGenerator produces the digest texts
type DigestGenerator interface {
	GenerateDailyOverview(ctx context.Context, articles []repository.Article) (string, error)
	GenerateTopSummary(ctx context.Context, articles []repository.Article) (string, error)
}

// Emailer delivers a digest to subscribers, returns how many went out
type Emailer interface {
	SendDigest(ctx context.Context, summary *repository.DailySummary, articles []repository.Article) (sent int, err error)
}

// ContentExtractor fetches full article text for better summaries
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Service runs the daily digest pipeline: search, store, summarize, deliver
type Service struct {
	searcher  Searcher
	articles  ArticleWriter
	digests   DigestStore
	sessions  SessionCleaner
	generator DigestGenerator
	emailer   Emailer          // nil when email delivery is disabled
	extractor ContentExtractor // nil when full-text extraction is disabled

	now func() time.Time // overridable in tests
}

// NewService creates the digest service. The emailer and extractor may be nil
// to disable delivery and full-text extraction.
func NewService(searcher Searcher, articles ArticleWriter, digests DigestStore,
	sessions SessionCleaner, generator DigestGenerator, emailer Emailer, extractor ContentExtractor) *Service {
	return &Service{
		searcher:  searcher,
		articles:  articles,
		digests:   digests,
		sessions:  sessions,
		generator: generator,
		emailer:   emailer,
		extractor: extractor,
		now:       time.Now,
	}
}

// Run produces the digest for today. A digest already stored for the date is
// returned as-is unless force is set, which regenerates it in place.
func (s *Service) Run(ctx context.Context, force bool) (*repository.DailySummary, error) {
	date := s.now().Format("2006-01-02")

	existing, err := s.digests.GetDailySummaryByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("check existing digest: %w", err)
	}
	if existing != nil && !force {
		log.Printf("[INFO] digest for %s already exists, skipping generation", date)
		return existing, nil
	}

	articles, err := s.searcher.Search(ctx)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}

	s.enrichContent(ctx, articles)

	ids := make([]int64, 0, len(articles))
	titles := make([]string, 0, len(articles))
	for i := range articles {
		if err := s.articles.UpsertArticle(ctx, &articles[i]); err != nil {
			return nil, fmt.Errorf("store article %q: %w", articles[i].URL, err)
		}
		ids = append(ids, articles[i].ID)
		titles = append(titles, articles[i].Title)
	}

	overview, err := s.generator.GenerateDailyOverview(ctx, articles)
	if err != nil {
		return nil, fmt.Errorf("generate overview: %w", err)
	}

	topSummary, err := s.generator.GenerateTopSummary(ctx, articles)
	if err != nil {
		return nil, fmt.Errorf("generate top summary: %w", err)
	}

	summary := &repository.DailySummary{
		Date:             date,
		DailyOverview:    overview,
		Top10Summary:     topSummary,
		FeaturedArticles: titles,
		ArticleIDs:       ids,
	}

	if existing != nil {
		summary.ID = existing.ID
		if err := s.digests.UpdateDailySummary(ctx, summary); err != nil {
			return nil, fmt.Errorf("update digest: %w", err)
		}
		log.Printf("[INFO] regenerated digest for %s with %d articles", date, len(articles))
	} else {
		if err := s.digests.CreateDailySummary(ctx, summary); err != nil {
			return nil, fmt.Errorf("store digest: %w", err)
		}
		log.Printf("[INFO] created digest for %s with %d articles", date, len(articles))
	}

	s.deliver(ctx, summary, articles)

	return summary, nil
}

// enrichContent replaces search snippets with extracted full text where
// possible. Extraction failures keep the snippet.
func (s *Service) enrichContent(ctx context.Context, articles []repository.Article) {
	if s.extractor == nil {
		return
	}
	for i := range articles {
		text, err := s.extractor.Extract(ctx, articles[i].URL)
		if err != nil {
			log.Printf("[DEBUG] content extraction failed for %s: %v", articles[i].URL, err)
			continue
		}
		articles[i].Content = text
	}
}

// deliver emails the digest and flags it sent when at least one delivery
// succeeded. Delivery problems never fail the digest run.
func (s *Service) deliver(ctx context.Context, summary *repository.DailySummary, articles []repository.Article) {
	if s.emailer == nil {
		return
	}

	sent, err := s.emailer.SendDigest(ctx, summary, articles)
	if err != nil {
		log.Printf("[WARN] digest delivery problem: %v", err)
	}
	if sent > 0 {
		if err := s.digests.MarkEmailSent(ctx, summary.ID); err != nil {
			log.Printf("[WARN] failed to mark digest %d sent: %v", summary.ID, err)
		}
		log.Printf("[INFO] digest %d delivered to %d recipients", summary.ID, sent)
	}
}

// Cleanup removes aged-out data: old articles and digests past the retention
// window, and comparison sessions that never received a vote
func (s *Service) Cleanup(ctx context.Context, retentionDays int) error {
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	articles, err := s.articles.DeleteArticlesOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup articles: %w", err)
	}

	digests, err := s.digests.DeleteDailySummariesOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup digests: %w", err)
	}

	// sessions abandoned for a week are unlikely to be finished
	staleCutoff := s.now().AddDate(0, 0, -7)
	sessions, err := s.sessions.DeleteStaleSessions(ctx, staleCutoff)
	if err != nil {
		return fmt.Errorf("cleanup sessions: %w", err)
	}

	log.Printf("[INFO] cleanup removed %d articles, %d digests, %d stale sessions", articles, digests, sessions)
	return nil
}
