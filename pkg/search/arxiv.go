package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/genewire/genewire/pkg/repository"
)

const arxivBaseURL = "http://export.arxiv.org"

// arxivFetcher queries the arXiv Atom API
type arxivFetcher struct {
	baseURL string
	client  *http.Client
}

func newArxivFetcher(client *http.Client, baseURL string) *arxivFetcher {
	if baseURL == "" {
		baseURL = arxivBaseURL
	}
	return &arxivFetcher{baseURL: baseURL, client: client}
}

// Search queries arXiv with OR-joined keywords, newest submissions first,
// up to 20 entries
func (f *arxivFetcher) Search(ctx context.Context, keywords []string) ([]repository.Article, error) {
	query := strings.Join(keywords, " OR ")
	queryURL := fmt.Sprintf("%s/api/query?search_query=all:%s&start=0&max_results=20&sortBy=submittedDate&sortOrder=descending",
		f.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create arxiv request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	var articles []repository.Article
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		summary := strings.TrimSpace(item.Description)
		if title == "" || summary == "" {
			continue
		}

		published := time.Now()
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}

		link := item.Link
		if link == "" {
			link = item.GUID // arXiv entry ids are abs URLs
		}

		articles = append(articles, repository.Article{
			Title:          title,
			URL:            link,
			Source:         "arXiv",
			Published:      published,
			Content:        summary,
			Summary:        snippet(summary),
			RelevanceScore: Score(title, summary),
			Keywords:       ExtractKeywords(title + " " + summary),
		})
	}

	return articles, nil
}
