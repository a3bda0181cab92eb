package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	log "github.com/go-pkgz/lgr"

	"github.com/genewire/genewire/pkg/config"
	"github.com/genewire/genewire/pkg/repository"
)

// ErrNoActiveSites is returned when no search sites are enabled
var ErrNoActiveSites = errors.New("no active search sites configured")

// SitesLister provides the configured search sites
type SitesLister interface {
	GetSites(ctx context.Context, activeOnly bool) ([]repository.Site, error)
}

// ThresholdReader resolves runtime overrides for the relevance threshold
type ThresholdReader interface {
	GetFloatSetting(ctx context.Context, key string, fallback float64) (float64, error)
}

// siteFetcher retrieves candidate articles from one site
type siteFetcher interface {
	Search(ctx context.Context, keywords []string) ([]repository.Article, error)
}

// Searcher fans a keyword search out over the active sites, scores the
// results and keeps the most relevant ones
type Searcher struct {
	sites    SitesLister
	settings ThresholdReader
	cfg      config.SearchConfig
	client   *http.Client

	fetcherFn func(site repository.Site) siteFetcher // overridable in tests
}

// NewSearcher creates a searcher over the configured sites
func NewSearcher(sites SitesLister, settings ThresholdReader, cfg config.SearchConfig) *Searcher {
	s := &Searcher{
		sites:    sites,
		settings: settings,
		cfg:      cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	s.fetcherFn = s.fetcherFor
	return s
}

// Search runs every active site concurrently. A failing site is logged and
// skipped, the run fails only when every site failed and nothing was found.
func (s *Searcher) Search(ctx context.Context) ([]repository.Article, error) {
	sites, err := s.sites.GetSites(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load search sites: %w", err)
	}
	if len(sites) == 0 {
		return nil, ErrNoActiveSites
	}

	threshold := s.cfg.RelevanceThreshold
	if s.settings != nil {
		if v, err := s.settings.GetFloatSetting(ctx, repository.SettingRelevanceThreshold, threshold); err == nil {
			threshold = v
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		articles []repository.Article
		failed   int
	)

	for _, site := range sites {
		wg.Add(1)
		go func(site repository.Site) {
			defer wg.Done()

			found, err := s.fetcherFn(site).Search(ctx, s.cfg.Keywords)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[WARN] site %s search failed: %v", site.Domain, err)
				failed++
				return
			}
			articles = append(articles, found...)
		}(site)
	}
	wg.Wait()

	if len(articles) == 0 && failed == len(sites) {
		return nil, fmt.Errorf("all %d search sites failed", len(sites))
	}

	kept := articles[:0]
	for _, a := range articles {
		if a.RelevanceScore >= threshold {
			kept = append(kept, a)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].RelevanceScore > kept[j].RelevanceScore })

	if s.cfg.MaxArticles > 0 && len(kept) > s.cfg.MaxArticles {
		kept = kept[:s.cfg.MaxArticles]
	}

	log.Printf("[INFO] search complete: %d sites, %d articles kept (threshold %.1f)", len(sites), len(kept), threshold)
	return kept, nil
}

// fetcherFor picks the adapter for a site, known domains get dedicated
// scrapers and everything else goes through the generic search API
func (s *Searcher) fetcherFor(site repository.Site) siteFetcher {
	domain := strings.ToLower(site.Domain)
	switch {
	case strings.Contains(domain, "pubmed"):
		return newPubMedFetcher(s.client, "")
	case strings.Contains(domain, "arxiv"):
		return newArxivFetcher(s.client, "")
	case strings.Contains(domain, "sciencedaily"):
		return newScienceDailyFetcher(s.client, "")
	default:
		return newGenericFetcher(s.client, "", s.cfg.GoogleAPIKey, s.cfg.GoogleEngineID, site)
	}
}

// fetchDocument gets a page and parses it with goquery
func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// snippet trims a text down to the stored summary length
func snippet(text string) string {
	const maxLen = 200
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
