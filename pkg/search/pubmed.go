package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/genewire/genewire/pkg/repository"
)

const pubmedBaseURL = "https://pubmed.ncbi.nlm.nih.gov"

// pubmedFetcher scrapes the PubMed search result page.
// PubMed has no open JSON search endpoint, the result listing is stable HTML.
type pubmedFetcher struct {
	baseURL string
	client  *http.Client
}

func newPubMedFetcher(client *http.Client, baseURL string) *pubmedFetcher {
	if baseURL == "" {
		baseURL = pubmedBaseURL
	}
	return &pubmedFetcher{baseURL: baseURL, client: client}
}

// Search queries PubMed with AND-joined keywords and parses the first page of
// results, up to 10 entries
func (f *pubmedFetcher) Search(ctx context.Context, keywords []string) ([]repository.Article, error) {
	term := strings.Join(keywords, " AND ")
	searchURL := fmt.Sprintf("%s/?term=%s", f.baseURL, url.QueryEscape(term))

	doc, err := fetchDocument(ctx, f.client, searchURL)
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}

	var articles []repository.Article
	doc.Find(".result-item").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 10 {
			return false
		}

		title := strings.TrimSpace(sel.Find(".title").Text())
		href, _ := sel.Find("a").Attr("href")
		abstract := strings.TrimSpace(sel.Find(".abstract").Text())

		if title == "" || href == "" {
			return true
		}

		articles = append(articles, repository.Article{
			Title:          title,
			URL:            f.baseURL + href,
			Source:         "PubMed",
			Published:      time.Now(),
			Content:        abstract,
			Summary:        snippet(abstract),
			RelevanceScore: Score(title, abstract),
			Keywords:       ExtractKeywords(title + " " + abstract),
		})
		return true
	})

	return articles, nil
}
