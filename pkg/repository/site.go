package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Site represents a configured search site
type Site struct {
	ID        int64     `db:"id" json:"id"`
	Domain    string    `db:"domain" json:"domain"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SiteRepository handles search site database operations
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(database *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: database}
}

// CreateSite adds a search site
func (r *SiteRepository) CreateSite(ctx context.Context, site *Site) error {
	query := `INSERT INTO search_sites (domain, name, active) VALUES (:domain, :name, :active)`
	result, err := r.db.NamedExecContext(ctx, query, site)
	if err != nil {
		return fmt.Errorf("create site: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	site.ID = id
	return nil
}

// GetSite retrieves a site by ID
func (r *SiteRepository) GetSite(ctx context.Context, id int64) (*Site, error) {
	var site Site
	err := r.db.GetContext(ctx, &site, "SELECT * FROM search_sites WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return &site, nil
}

// GetSites retrieves all sites, optionally active only
func (r *SiteRepository) GetSites(ctx context.Context, activeOnly bool) ([]Site, error) {
	query := "SELECT * FROM search_sites ORDER BY domain"
	if activeOnly {
		query = "SELECT * FROM search_sites WHERE active = 1 ORDER BY domain"
	}
	var sites []Site
	if err := r.db.SelectContext(ctx, &sites, query); err != nil {
		return nil, fmt.Errorf("get sites: %w", err)
	}
	return sites, nil
}

// UpdateSite updates name and active flag
func (r *SiteRepository) UpdateSite(ctx context.Context, site *Site) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE search_sites SET name = ?, active = ? WHERE id = ?",
		site.Name, site.Active, site.ID)
	if err != nil {
		return fmt.Errorf("update site: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("site %d: %w", site.ID, ErrNotFound)
	}
	return nil
}

// DeleteSite removes a search site
func (r *SiteRepository) DeleteSite(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM search_sites WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("site %d: %w", id, ErrNotFound)
	}
	return nil
}
