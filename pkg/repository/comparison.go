package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
)

// Comparison represents one A/B round within a comparison session
type Comparison struct {
	ID               int64          `db:"id" json:"id"`
	SessionID        string         `db:"session_id" json:"session_id"`
	RecipientID      string         `db:"recipient_id" json:"recipient_id"`
	SummaryID        int64          `db:"summary_id" json:"summary_id"`
	ArticleID        int64          `db:"article_id" json:"article_id"`
	CurrentSummary   string         `db:"current_summary" json:"current_summary"`
	AdvancedSummary  string         `db:"advanced_summary" json:"advanced_summary"`
	CurrentModel     string         `db:"current_model" json:"current_model"`
	AdvancedModel    string         `db:"advanced_model" json:"advanced_model"`
	ComparisonOrder  int            `db:"comparison_order" json:"comparison_order"`
	UserPreference   sql.NullString `db:"user_preference" json:"-"`
	ExtractionMethod string         `db:"extraction_method" json:"extraction_method"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// ComparisonWithArticle is a comparison joined with its article's display metadata
type ComparisonWithArticle struct {
	Comparison
	ArticleTitle     string    `db:"article_title"`
	ArticleSource    string    `db:"article_source"`
	ArticlePublished time.Time `db:"article_published"`
}

// ComparisonRepository handles comparison session database operations
type ComparisonRepository struct {
	db *sqlx.DB
}

// NewComparisonRepository creates a new comparison repository
func NewComparisonRepository(database *sqlx.DB) *ComparisonRepository {
	return &ComparisonRepository{db: database}
}

// CreateComparisons inserts all rounds of a session in one transaction.
// Any single insert failure rolls back the whole batch so the caller never
// observes a partial session. SQLite busy errors are retried with backoff.
func (r *ComparisonRepository) CreateComparisons(ctx context.Context, comparisons []Comparison) error {
	if len(comparisons) == 0 {
		return fmt.Errorf("no comparisons to create")
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("begin transaction: %w", err)}
		}

		query := `
			INSERT INTO feedback_comparisons (
				session_id, recipient_id, summary_id, article_id,
				current_summary, advanced_summary, current_model, advanced_model,
				comparison_order, extraction_method
			) VALUES (
				:session_id, :recipient_id, :summary_id, :article_id,
				:current_summary, :advanced_summary, :current_model, :advanced_model,
				:comparison_order, :extraction_method
			)
		`
		for i := range comparisons {
			if _, err := tx.NamedExecContext(ctx, query, &comparisons[i]); err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					return &criticalError{err: fmt.Errorf("insert comparison: %w (rollback also failed: %s)", err, rbErr.Error())}
				}
				if isLockError(err) {
					return err
				}
				return &criticalError{err: fmt.Errorf("insert comparison %d: %w", comparisons[i].ComparisonOrder, err)}
			}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("commit comparisons: %w", err)}
		}
		return nil
	})
}

// GetComparison retrieves the round at (session, order) joined with article metadata
func (r *ComparisonRepository) GetComparison(ctx context.Context, sessionID string, order int) (*ComparisonWithArticle, error) {
	query := `
		SELECT c.*,
		       a.title AS article_title,
		       a.source AS article_source,
		       a.published AS article_published
		FROM feedback_comparisons c
		JOIN articles a ON a.id = c.article_id
		WHERE c.session_id = ? AND c.comparison_order = ?
	`
	var comparison ComparisonWithArticle
	err := r.db.GetContext(ctx, &comparison, query, sessionID, order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comparison %s/%d: %w", sessionID, order, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get comparison: %w", err)
	}
	return &comparison, nil
}

// CountComparisons returns the number of rounds in a session
func (r *ComparisonRepository) CountComparisons(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM feedback_comparisons WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, fmt.Errorf("count comparisons: %w", err)
	}
	return count, nil
}

// UpdatePreference records the user's choice for a round, last write wins
func (r *ComparisonRepository) UpdatePreference(ctx context.Context, sessionID string, order int, preference string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE feedback_comparisons SET user_preference = ? WHERE session_id = ? AND comparison_order = ?",
		preference, sessionID, order)
	if err != nil {
		return fmt.Errorf("update preference: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("comparison %s/%d: %w", sessionID, order, ErrNotFound)
	}
	return nil
}

// GetSessionComparisons retrieves all rounds for a session ordered by comparison_order
func (r *ComparisonRepository) GetSessionComparisons(ctx context.Context, sessionID string) ([]ComparisonWithArticle, error) {
	query := `
		SELECT c.*,
		       a.title AS article_title,
		       a.source AS article_source,
		       a.published AS article_published
		FROM feedback_comparisons c
		JOIN articles a ON a.id = c.article_id
		WHERE c.session_id = ?
		ORDER BY c.comparison_order
	`
	var comparisons []ComparisonWithArticle
	if err := r.db.SelectContext(ctx, &comparisons, query, sessionID); err != nil {
		return nil, fmt.Errorf("get session comparisons: %w", err)
	}
	return comparisons, nil
}

// DeleteStaleSessions removes rounds of sessions created before the cutoff
// that never recorded a single preference
func (r *ComparisonRepository) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM feedback_comparisons
		WHERE session_id IN (
			SELECT session_id FROM feedback_comparisons
			GROUP BY session_id
			HAVING MAX(created_at) < ? AND COUNT(user_preference) = 0
		)
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return deleted, nil
}
