package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupComparisonFixtures creates a summary with three articles for session tests
func setupComparisonFixtures(t *testing.T, repos *Repositories) (*DailySummary, []Article) {
	t.Helper()
	ctx := context.Background()

	a1 := testArticle(t, repos, "First article", "https://example.com/c1", 9.0)
	a2 := testArticle(t, repos, "Second article", "https://example.com/c2", 8.0)
	a3 := testArticle(t, repos, "Third article", "https://example.com/c3", 7.0)

	summary := &DailySummary{
		Date:         "2025-08-10",
		Top10Summary: "digest text",
		ArticleIDs:   idsSQL{a1.ID, a2.ID, a3.ID},
	}
	require.NoError(t, repos.Summary.CreateDailySummary(ctx, summary))
	return summary, []Article{*a1, *a2, *a3}
}

func sessionRounds(sessionID string, summary *DailySummary, articles []Article) []Comparison {
	rounds := make([]Comparison, len(articles))
	for i, article := range articles {
		rounds[i] = Comparison{
			SessionID:        sessionID,
			RecipientID:      "r1",
			SummaryID:        summary.ID,
			ArticleID:        article.ID,
			CurrentSummary:   "current summary for " + article.Title,
			AdvancedSummary:  "advanced summary for " + article.Title,
			CurrentModel:     "gpt-4o-mini",
			AdvancedModel:    "gpt-4o",
			ComparisonOrder:  i + 1,
			ExtractionMethod: "extracted",
		}
	}
	return rounds
}

func TestComparisonRepository_CreateComparisons(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	summary, articles := setupComparisonFixtures(t, repos)

	t.Run("batch insert", func(t *testing.T) {
		rounds := sessionRounds("session-1", summary, articles)
		require.NoError(t, repos.Comparison.CreateComparisons(ctx, rounds))

		count, err := repos.Comparison.CountComparisons(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("all or nothing on failed insert", func(t *testing.T) {
		rounds := sessionRounds("session-2", summary, articles)
		rounds[2].ComparisonOrder = rounds[1].ComparisonOrder // violates session/order uniqueness

		err := repos.Comparison.CreateComparisons(ctx, rounds)
		require.Error(t, err)

		// no partial session observable
		count, err := repos.Comparison.CountComparisons(ctx, "session-2")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("empty batch rejected", func(t *testing.T) {
		err := repos.Comparison.CreateComparisons(ctx, nil)
		require.Error(t, err)
	})
}

func TestComparisonRepository_GetComparison(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	summary, articles := setupComparisonFixtures(t, repos)
	require.NoError(t, repos.Comparison.CreateComparisons(ctx, sessionRounds("session-g", summary, articles)))

	t.Run("round joined with article metadata", func(t *testing.T) {
		comparison, err := repos.Comparison.GetComparison(ctx, "session-g", 2)
		require.NoError(t, err)
		assert.Equal(t, "Second article", comparison.ArticleTitle)
		assert.Equal(t, "PubMed", comparison.ArticleSource)
		assert.Equal(t, 2, comparison.ComparisonOrder)
		assert.False(t, comparison.UserPreference.Valid)
	})

	t.Run("order beyond session rounds is not found", func(t *testing.T) {
		_, err := repos.Comparison.GetComparison(ctx, "session-g", 4)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		_, err := repos.Comparison.GetComparison(ctx, "no-such-session", 1)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestComparisonRepository_UpdatePreference(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	summary, articles := setupComparisonFixtures(t, repos)
	require.NoError(t, repos.Comparison.CreateComparisons(ctx, sessionRounds("session-p", summary, articles)))

	t.Run("record preference", func(t *testing.T) {
		require.NoError(t, repos.Comparison.UpdatePreference(ctx, "session-p", 1, "A"))

		comparison, err := repos.Comparison.GetComparison(ctx, "session-p", 1)
		require.NoError(t, err)
		require.True(t, comparison.UserPreference.Valid)
		assert.Equal(t, "A", comparison.UserPreference.String)
	})

	t.Run("resubmission overwrites", func(t *testing.T) {
		require.NoError(t, repos.Comparison.UpdatePreference(ctx, "session-p", 1, "B"))

		comparison, err := repos.Comparison.GetComparison(ctx, "session-p", 1)
		require.NoError(t, err)
		assert.Equal(t, "B", comparison.UserPreference.String)
	})

	t.Run("missing round", func(t *testing.T) {
		err := repos.Comparison.UpdatePreference(ctx, "session-p", 9, "A")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestComparisonRepository_GetSessionComparisons(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	summary, articles := setupComparisonFixtures(t, repos)
	require.NoError(t, repos.Comparison.CreateComparisons(ctx, sessionRounds("session-s", summary, articles)))
	require.NoError(t, repos.Comparison.UpdatePreference(ctx, "session-s", 1, "B"))

	comparisons, err := repos.Comparison.GetSessionComparisons(ctx, "session-s")
	require.NoError(t, err)
	require.Len(t, comparisons, 3)

	// ordered by round
	assert.Equal(t, 1, comparisons[0].ComparisonOrder)
	assert.Equal(t, 2, comparisons[1].ComparisonOrder)
	assert.Equal(t, 3, comparisons[2].ComparisonOrder)
	assert.True(t, comparisons[0].UserPreference.Valid)
	assert.False(t, comparisons[1].UserPreference.Valid)

	empty, err := repos.Comparison.GetSessionComparisons(ctx, "no-such-session")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestComparisonRepository_DeleteStaleSessions(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	summary, articles := setupComparisonFixtures(t, repos)

	require.NoError(t, repos.Comparison.CreateComparisons(ctx, sessionRounds("stale", summary, articles)))
	require.NoError(t, repos.Comparison.CreateComparisons(ctx, sessionRounds("active", summary, articles)))
	require.NoError(t, repos.Comparison.UpdatePreference(ctx, "active", 1, "A"))

	// age both sessions past the cutoff
	_, err := repos.DB.ExecContext(ctx, "UPDATE feedback_comparisons SET created_at = datetime('now', '-100 days')")
	require.NoError(t, err)

	deleted, err := repos.Comparison.DeleteStaleSessions(ctx, timeDaysAgo(90))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted) // only the session with zero recorded preferences

	count, err := repos.Comparison.CountComparisons(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = repos.Comparison.CountComparisons(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
