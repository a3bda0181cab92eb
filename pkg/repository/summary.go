package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DailySummary represents one day's generated digest
type DailySummary struct {
	ID               int64       `db:"id" json:"id"`
	Date             string      `db:"date" json:"date"` // YYYY-MM-DD
	DailyOverview    string      `db:"daily_overview" json:"daily_overview"`
	Top10Summary     string      `db:"top10_summary" json:"top10_summary"`
	FeaturedArticles keywordsSQL `db:"featured_articles" json:"featured_articles"`
	ArticleIDs       idsSQL      `db:"article_ids" json:"article_ids"`
	EmailSent        bool        `db:"email_sent" json:"email_sent"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// idsSQL is a JSON array of int64 IDs for SQL operations
type idsSQL []int64

// Value implements driver.Valuer for database storage
func (i idsSQL) Value() (driver.Value, error) {
	if i == nil {
		return "[]", nil
	}
	return json.Marshal(i)
}

// Scan implements sql.Scanner for database retrieval
func (i *idsSQL) Scan(value interface{}) error {
	if value == nil {
		*i = idsSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return json.Unmarshal([]byte("[]"), i)
	}

	return json.Unmarshal(data, i)
}

// SummaryRepository handles daily summary database operations
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(database *sqlx.DB) *SummaryRepository {
	return &SummaryRepository{db: database}
}

// CreateDailySummary inserts a daily summary row, one per date
func (r *SummaryRepository) CreateDailySummary(ctx context.Context, summary *DailySummary) error {
	query := `
		INSERT INTO daily_summaries (date, daily_overview, top10_summary, featured_articles, article_ids, email_sent)
		VALUES (:date, :daily_overview, :top10_summary, :featured_articles, :article_ids, :email_sent)
	`
	result, err := r.db.NamedExecContext(ctx, query, summary)
	if err != nil {
		return fmt.Errorf("create daily summary: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	summary.ID = id
	return nil
}

// UpdateDailySummary rewrites the generated content of an existing summary.
// Resets the delivery flag since the content changed.
func (r *SummaryRepository) UpdateDailySummary(ctx context.Context, summary *DailySummary) error {
	query := `
		UPDATE daily_summaries
		SET daily_overview = :daily_overview, top10_summary = :top10_summary,
		    featured_articles = :featured_articles, article_ids = :article_ids, email_sent = 0
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, summary)
	if err != nil {
		return fmt.Errorf("update daily summary: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("summary %d: %w", summary.ID, ErrNotFound)
	}
	return nil
}

// GetDailySummary retrieves a summary by ID
func (r *SummaryRepository) GetDailySummary(ctx context.Context, id int64) (*DailySummary, error) {
	var summary DailySummary
	err := r.db.GetContext(ctx, &summary, "SELECT * FROM daily_summaries WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get daily summary: %w", err)
	}
	return &summary, nil
}

// GetDailySummaryByDate retrieves a summary for the given date, nil if none exists
func (r *SummaryRepository) GetDailySummaryByDate(ctx context.Context, date string) (*DailySummary, error) {
	var summary DailySummary
	err := r.db.GetContext(ctx, &summary, "SELECT * FROM daily_summaries WHERE date = ?", date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily summary by date: %w", err)
	}
	return &summary, nil
}

// ListDailySummaries retrieves recent summaries, newest first
func (r *SummaryRepository) ListDailySummaries(ctx context.Context, limit int) ([]DailySummary, error) {
	var summaries []DailySummary
	err := r.db.SelectContext(ctx, &summaries,
		"SELECT * FROM daily_summaries ORDER BY date DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	return summaries, nil
}

// MarkEmailSent flags a summary as delivered
func (r *SummaryRepository) MarkEmailSent(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "UPDATE daily_summaries SET email_sent = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("summary %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDailySummariesOlderThan removes summaries created before the cutoff
func (r *SummaryRepository) DeleteDailySummariesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM daily_summaries WHERE created_at < ? AND id NOT IN (SELECT summary_id FROM feedback_comparisons)",
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old summaries: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return deleted, nil
}
