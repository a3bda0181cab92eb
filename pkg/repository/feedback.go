package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// FeedbackEvent represents a single thumbs up/down feedback event
type FeedbackEvent struct {
	ID            int64     `db:"id" json:"id"`
	RecipientID   string    `db:"recipient_id" json:"recipient_id"`
	FeedbackType  string    `db:"feedback_type" json:"feedback_type"` // summary or article
	TargetID      int64     `db:"target_id" json:"target_id"`
	FeedbackValue string    `db:"feedback_value" json:"feedback_value"` // up or down
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// FeedbackRepository handles thumbs up/down feedback database operations
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(database *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: database}
}

// CreateFeedback records a feedback event. A repeat submission for the same
// (recipient, target, type) key is a silent no-op.
func (r *FeedbackRepository) CreateFeedback(ctx context.Context, event *FeedbackEvent) error {
	query := `
		INSERT OR IGNORE INTO feedback_events (recipient_id, feedback_type, target_id, feedback_value)
		VALUES (:recipient_id, :feedback_type, :target_id, :feedback_value)
	`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// GetFeedback retrieves all feedback events for a target
func (r *FeedbackRepository) GetFeedback(ctx context.Context, feedbackType string, targetID int64) ([]FeedbackEvent, error) {
	var events []FeedbackEvent
	err := r.db.SelectContext(ctx, &events,
		"SELECT * FROM feedback_events WHERE feedback_type = ? AND target_id = ? ORDER BY created_at",
		feedbackType, targetID)
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return events, nil
}

// CountFeedback returns up/down counts for a target
func (r *FeedbackRepository) CountFeedback(ctx context.Context, feedbackType string, targetID int64) (up, down int, err error) {
	query := `
		SELECT feedback_value, COUNT(*) AS count
		FROM feedback_events
		WHERE feedback_type = ? AND target_id = ?
		GROUP BY feedback_value
	`
	var counts []struct {
		FeedbackValue string `db:"feedback_value"`
		Count         int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &counts, query, feedbackType, targetID); err != nil {
		return 0, 0, fmt.Errorf("count feedback: %w", err)
	}

	for _, c := range counts {
		switch c.FeedbackValue {
		case "up":
			up = c.Count
		case "down":
			down = c.Count
		}
	}
	return up, down, nil
}
