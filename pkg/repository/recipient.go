package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Recipient represents a newsletter subscriber
type Recipient struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RecipientRepository handles recipient database operations
type RecipientRepository struct {
	db *sqlx.DB
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(database *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: database}
}

// CreateRecipient adds a subscriber
func (r *RecipientRepository) CreateRecipient(ctx context.Context, recipient *Recipient) error {
	query := `INSERT INTO recipients (email, name, active) VALUES (:email, :name, :active)`
	result, err := r.db.NamedExecContext(ctx, query, recipient)
	if err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	recipient.ID = id
	return nil
}

// GetRecipient retrieves a recipient by ID
func (r *RecipientRepository) GetRecipient(ctx context.Context, id int64) (*Recipient, error) {
	var recipient Recipient
	err := r.db.GetContext(ctx, &recipient, "SELECT * FROM recipients WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recipient %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return &recipient, nil
}

// GetRecipients retrieves all recipients, optionally active only
func (r *RecipientRepository) GetRecipients(ctx context.Context, activeOnly bool) ([]Recipient, error) {
	query := "SELECT * FROM recipients ORDER BY created_at"
	if activeOnly {
		query = "SELECT * FROM recipients WHERE active = 1 ORDER BY created_at"
	}
	var recipients []Recipient
	if err := r.db.SelectContext(ctx, &recipients, query); err != nil {
		return nil, fmt.Errorf("get recipients: %w", err)
	}
	return recipients, nil
}

// UpdateRecipient updates name and active flag
func (r *RecipientRepository) UpdateRecipient(ctx context.Context, recipient *Recipient) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE recipients SET name = ?, active = ? WHERE id = ?",
		recipient.Name, recipient.Active, recipient.ID)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recipient %d: %w", recipient.ID, ErrNotFound)
	}
	return nil
}

// DeleteRecipient removes a subscriber
func (r *RecipientRepository) DeleteRecipient(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM recipients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recipient %d: %w", id, ErrNotFound)
	}
	return nil
}
