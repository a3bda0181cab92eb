package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/genewire/genewire/pkg/repository"
)

const scienceDailyBaseURL = "https://www.sciencedaily.com"

// scienceDailyFetcher scrapes the ScienceDaily synthetic biology section page
type scienceDailyFetcher struct {
	baseURL string
	client  *http.Client
}

func newScienceDailyFetcher(client *http.Client, baseURL string) *scienceDailyFetcher {
	if baseURL == "" {
		baseURL = scienceDailyBaseURL
	}
	return &scienceDailyFetcher{baseURL: baseURL, client: client}
}

// Search parses the section listing, up to 5 entries. Keywords are ignored,
// the section page is already topic-scoped.
func (f *scienceDailyFetcher) Search(ctx context.Context, _ []string) ([]repository.Article, error) {
	sectionURL := f.baseURL + "/news/computers_math/synthetic_biology/"

	doc, err := fetchDocument(ctx, f.client, sectionURL)
	if err != nil {
		return nil, fmt.Errorf("sciencedaily search: %w", err)
	}

	var articles []repository.Article
	doc.Find(".latest-head").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 5 {
			return false
		}

		title := strings.TrimSpace(sel.Find("a").Text())
		href, _ := sel.Find("a").Attr("href")
		brief := strings.TrimSpace(sel.Find(".brief").Text())

		if title == "" || href == "" {
			return true
		}

		articles = append(articles, repository.Article{
			Title:          title,
			URL:            f.baseURL + href,
			Source:         "Science Daily",
			Published:      time.Now(),
			Content:        brief,
			Summary:        snippet(brief),
			RelevanceScore: Score(title, brief),
			Keywords:       ExtractKeywords(title + " " + brief),
		})
		return true
	})

	return articles, nil
}
