package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// Well-known setting keys
const (
	SettingComparisonModel       = "comparison_model"
	SettingComparisonTemperature = "comparison_temperature"
	SettingComparisonMaxTokens   = "comparison_max_tokens"
	SettingCurrentModel          = "openai_model"
	SettingRelevanceThreshold    = "relevance_threshold"
)

// SettingRepository handles setting-related database operations
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(database *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: database}
}

// GetSetting retrieves a setting value, empty string if unset
func (r *SettingRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting stores a setting value
func (r *SettingRepository) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// GetAllSettings retrieves all settings as a map
func (r *SettingRepository) GetAllSettings(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := r.db.SelectContext(ctx, &rows, "SELECT key, value FROM settings"); err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}

// GetFloatSetting retrieves a setting as float64, fallback if unset or malformed
func (r *SettingRepository) GetFloatSetting(ctx context.Context, key string, fallback float64) (float64, error) {
	value, err := r.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// GetIntSetting retrieves a setting as int, fallback if unset or malformed
func (r *SettingRepository) GetIntSetting(ctx context.Context, key string, fallback int) (int, error) {
	value, err := r.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}
