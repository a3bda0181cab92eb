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

// Article represents a stored article found by a search run
type Article struct {
	ID             int64       `db:"id" json:"id"`
	Title          string      `db:"title" json:"title"`
	URL            string      `db:"url" json:"url"`
	Source         string      `db:"source" json:"source"`
	Published      time.Time   `db:"published" json:"published"`
	Content        string      `db:"content" json:"content"`
	Summary        string      `db:"summary" json:"summary"`
	RelevanceScore float64     `db:"relevance_score" json:"relevance_score"`
	Keywords       keywordsSQL `db:"keywords" json:"keywords"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// keywordsSQL is a JSON array of keyword strings for SQL operations
type keywordsSQL []string

// Value implements driver.Valuer for database storage
func (k keywordsSQL) Value() (driver.Value, error) {
	if k == nil {
		return "[]", nil
	}
	return json.Marshal(k)
}

// Scan implements sql.Scanner for database retrieval
func (k *keywordsSQL) Scan(value interface{}) error {
	if value == nil {
		*k = keywordsSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return json.Unmarshal([]byte("[]"), k)
	}

	return json.Unmarshal(data, k)
}

// ArticleRepository handles article-related database operations
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(database *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: database}
}

// UpsertArticle inserts an article or updates the existing row with the same URL.
// The article ID is set to the stored row's ID either way.
func (r *ArticleRepository) UpsertArticle(ctx context.Context, article *Article) error {
	query := `
		INSERT INTO articles (title, url, source, published, content, summary, relevance_score, keywords)
		VALUES (:title, :url, :source, :published, :content, :summary, :relevance_score, :keywords)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			published = excluded.published,
			content = excluded.content,
			summary = excluded.summary,
			relevance_score = excluded.relevance_score,
			keywords = excluded.keywords
	`
	if _, err := r.db.NamedExecContext(ctx, query, article); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}

	// LastInsertId is unreliable on conflict-update, fetch the row id by url
	var id int64
	if err := r.db.GetContext(ctx, &id, "SELECT id FROM articles WHERE url = ?", article.URL); err != nil {
		return fmt.Errorf("get article id: %w", err)
	}
	article.ID = id
	return nil
}

// GetArticle retrieves an article by ID
func (r *ArticleRepository) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var article Article
	err := r.db.GetContext(ctx, &article, "SELECT * FROM articles WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &article, nil
}

// GetArticlesByIDs retrieves articles by IDs ordered by relevance descending, capped at limit
func (r *ArticleRepository) GetArticlesByIDs(ctx context.Context, ids []int64, limit int) ([]Article, error) {
	if len(ids) == 0 {
		return []Article{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT * FROM articles WHERE id IN (?) ORDER BY relevance_score DESC LIMIT ?",
		ids, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	query = r.db.Rebind(query)
	var articles []Article
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("get articles by ids: %w", err)
	}
	return articles, nil
}

// GetRecentArticles retrieves the highest-scored articles stored within the last day
func (r *ArticleRepository) GetRecentArticles(ctx context.Context, limit int) ([]Article, error) {
	query := `
		SELECT * FROM articles
		WHERE created_at >= datetime('now', '-1 day')
		ORDER BY relevance_score DESC
		LIMIT ?
	`
	var articles []Article
	if err := r.db.SelectContext(ctx, &articles, query, limit); err != nil {
		return nil, fmt.Errorf("get recent articles: %w", err)
	}
	return articles, nil
}

// DeleteArticlesOlderThan removes articles created before the cutoff, returns deleted count
func (r *ArticleRepository) DeleteArticlesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM articles WHERE created_at < ? AND id NOT IN (SELECT article_id FROM feedback_comparisons)",
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old articles: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return deleted, nil
}
