package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/genewire/genewire/pkg/repository"
)

const googleSearchBaseURL = "https://www.googleapis.com/customsearch/v1"

// genericFetcher covers sites without a dedicated adapter by running a
// site-restricted query through the Google Custom Search JSON API
type genericFetcher struct {
	baseURL  string
	client   *http.Client
	apiKey   string
	engineID string
	site     repository.Site
}

func newGenericFetcher(client *http.Client, baseURL, apiKey, engineID string, site repository.Site) *genericFetcher {
	if baseURL == "" {
		baseURL = googleSearchBaseURL
	}
	return &genericFetcher{baseURL: baseURL, client: client, apiKey: apiKey, engineID: engineID, site: site}
}

// googleSearchResponse is the subset of the Custom Search response we read
type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search runs "<keywords> site:<domain>" against the search API
func (f *genericFetcher) Search(ctx context.Context, keywords []string) ([]repository.Article, error) {
	if f.apiKey == "" || f.engineID == "" {
		return nil, fmt.Errorf("no search API credentials for site %s", f.site.Domain)
	}

	query := strings.Join(keywords, " ") + " site:" + f.site.Domain
	params := url.Values{}
	params.Set("key", f.apiKey)
	params.Set("cx", f.engineID)
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", f.site.Domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d for site %s", resp.StatusCode, f.site.Domain)
	}

	var result googleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	source := f.site.Name
	if source == "" {
		source = f.site.Domain
	}

	var articles []repository.Article
	for i, item := range result.Items {
		if i >= 10 {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}

		articles = append(articles, repository.Article{
			Title:          item.Title,
			URL:            item.Link,
			Source:         source,
			Published:      time.Now(),
			Content:        item.Snippet,
			Summary:        snippet(item.Snippet),
			RelevanceScore: Score(item.Title, item.Snippet),
			Keywords:       ExtractKeywords(item.Title + " " + item.Snippet),
		})
	}

	return articles, nil
}
