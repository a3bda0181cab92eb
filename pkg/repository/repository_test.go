package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepos creates repositories backed by an in-memory database
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()

	repos, err := NewRepositories(context.Background(), Config{
		DSN: "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, repos.Close())
	})
	return repos
}

// testArticle builds a stored article for tests
func testArticle(t *testing.T, repos *Repositories, title, url string, score float64) *Article {
	t.Helper()

	article := &Article{
		Title:          title,
		URL:            url,
		Source:         "PubMed",
		Published:      time.Now().UTC(),
		Content:        "article content about " + title,
		Summary:        "short summary of " + title,
		RelevanceScore: score,
		Keywords:       keywordsSQL{"crispr"},
	}
	require.NoError(t, repos.Article.UpsertArticle(context.Background(), article))
	return article
}

// timeDaysAgo returns the UTC time n days in the past
func timeDaysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

func TestNewRepositories(t *testing.T) {
	repos := setupTestRepos(t)

	require.NotNil(t, repos.Article)
	require.NotNil(t, repos.Summary)
	require.NotNil(t, repos.Comparison)
	require.NotNil(t, repos.Feedback)
	require.NotNil(t, repos.Recipient)
	require.NotNil(t, repos.Site)
	require.NotNil(t, repos.Setting)

	// schema is idempotent, re-running must not fail
	_, err := repos.DB.ExecContext(context.Background(), schema)
	assert.NoError(t, err)
}

func TestIsLockError(t *testing.T) {
	assert.False(t, isLockError(nil))
	assert.False(t, isLockError(fmt.Errorf("some error")))
	assert.True(t, isLockError(fmt.Errorf("database is locked")))
	assert.True(t, isLockError(fmt.Errorf("SQLITE_BUSY: cannot start transaction")))
}
