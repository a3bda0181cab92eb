package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genewire/genewire/pkg/repository"
)

func TestPubMedFetcher_Search(t *testing.T) {
	t.Run("parses result items", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Query().Get("term"), "synthetic biology AND crispr")
			_, _ = w.Write([]byte(`<html><body>
				<div class="result-item">
					<span class="title">CRISPR base editing in bacteria</span>
					<a href="/12345/">link</a>
					<div class="abstract">A new gene editing approach for synthetic biology applications.</div>
				</div>
				<div class="result-item">
					<span class="title">Untitled entry</span>
				</div>
			</body></html>`))
		}))
		defer server.Close()

		fetcher := newPubMedFetcher(server.Client(), server.URL)
		articles, err := fetcher.Search(context.Background(), []string{"synthetic biology", "crispr"})
		require.NoError(t, err)

		// second item has no link and is dropped
		require.Len(t, articles, 1)
		assert.Equal(t, "CRISPR base editing in bacteria", articles[0].Title)
		assert.Equal(t, server.URL+"/12345/", articles[0].URL)
		assert.Equal(t, "PubMed", articles[0].Source)
		assert.Positive(t, articles[0].RelevanceScore)
		assert.Contains(t, []string(articles[0].Keywords), "crispr")
	})

	t.Run("malformed page yields no articles", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not html at all"))
		}))
		defer server.Close()

		fetcher := newPubMedFetcher(server.Client(), server.URL)
		articles, err := fetcher.Search(context.Background(), []string{"crispr"})
		require.NoError(t, err)
		assert.Empty(t, articles)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		fetcher := newPubMedFetcher(server.Client(), server.URL)
		_, err := fetcher.Search(context.Background(), []string{"crispr"})
		require.Error(t, err)
	})
}

func TestScienceDailyFetcher_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/news/computers_math/synthetic_biology/", r.URL.Path)
		_, _ = w.Write([]byte(`<html><body>
			<div class="latest-head">
				<a href="/releases/2026/08/yeast.htm">Engineered yeast produces new antibiotics</a>
				<div class="brief">Researchers report a metabolic engineering breakthrough.</div>
			</div>
		</body></html>`))
	}))
	defer server.Close()

	fetcher := newScienceDailyFetcher(server.Client(), server.URL)
	articles, err := fetcher.Search(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, articles, 1)
	assert.Equal(t, "Engineered yeast produces new antibiotics", articles[0].Title)
	assert.Equal(t, server.URL+"/releases/2026/08/yeast.htm", articles[0].URL)
	assert.Equal(t, "Science Daily", articles[0].Source)
}

func TestArxivFetcher_Search(t *testing.T) {
	atom := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query Results</title>
  <entry>
    <id>http://arxiv.org/abs/2608.01001</id>
    <title>Programmable synthetic genome assembly</title>
    <summary>We present a novel method for synthetic genome construction.</summary>
    <published>2026-08-30T10:00:00Z</published>
    <link href="http://arxiv.org/abs/2608.01001"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2608.01002</id>
    <title>Entry without summary</title>
    <summary></summary>
    <published>2026-08-30T11:00:00Z</published>
  </entry>
</feed>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/query", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("search_query"), "all:")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atom))
	}))
	defer server.Close()

	fetcher := newArxivFetcher(server.Client(), server.URL)
	articles, err := fetcher.Search(context.Background(), []string{"synthetic biology", "crispr"})
	require.NoError(t, err)

	require.Len(t, articles, 1)
	assert.Equal(t, "Programmable synthetic genome assembly", articles[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/2608.01001", articles[0].URL)
	assert.Equal(t, "arXiv", articles[0].Source)
	assert.Equal(t, 2026, articles[0].Published.Year())
}

func TestGenericFetcher_Search(t *testing.T) {
	site := repository.Site{Domain: "nature.com", Name: "Nature"}

	t.Run("site restricted query", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "test-api-key", q.Get("key"))
			assert.Equal(t, "test-engine", q.Get("cx"))
			assert.Equal(t, "synthetic biology crispr site:nature.com", q.Get("q"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"items":[
				{"title":"Gene editing milestone","link":"https://nature.com/articles/a1","snippet":"A crispr breakthrough in gene editing."},
				{"title":"","link":"https://nature.com/articles/a2","snippet":"no title"}
			]}`))
		}))
		defer server.Close()

		fetcher := newGenericFetcher(server.Client(), server.URL, "test-api-key", "test-engine", site)
		articles, err := fetcher.Search(context.Background(), []string{"synthetic biology", "crispr"})
		require.NoError(t, err)

		require.Len(t, articles, 1)
		assert.Equal(t, "Gene editing milestone", articles[0].Title)
		assert.Equal(t, "Nature", articles[0].Source)
	})

	t.Run("missing credentials", func(t *testing.T) {
		fetcher := newGenericFetcher(http.DefaultClient, "", "", "", site)
		_, err := fetcher.Search(context.Background(), []string{"crispr"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credentials")
	})

	t.Run("falls back to domain as source", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"items":[{"title":"t","link":"https://x/1","snippet":"s"}]}`))
		}))
		defer server.Close()

		fetcher := newGenericFetcher(server.Client(), server.URL, "k", "c", repository.Site{Domain: "x.org"})
		articles, err := fetcher.Search(context.Background(), []string{"crispr"})
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, "x.org", articles[0].Source)
	})
}
