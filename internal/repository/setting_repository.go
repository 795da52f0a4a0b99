package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-compass-api/internal/models"
)

const settingColumns = `id, key, value, description, created_at, updated_at`

// SettingRepository persists site settings.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository constructs a SettingRepository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// List returns every setting ordered by key.
func (r *SettingRepository) List(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, `SELECT `+settingColumns+` FROM settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// FindByKey returns one setting.
func (r *SettingRepository) FindByKey(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, `SELECT `+settingColumns+` FROM settings WHERE key = $1`, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find setting: %w", err)
	}
	return &setting, nil
}

// Upsert inserts or replaces a setting value. A nil description keeps the stored one.
func (r *SettingRepository) Upsert(ctx context.Context, key string, req models.SettingRequest) (*models.Setting, error) {
	now := time.Now().UTC()
	query := `INSERT INTO settings (id, key, value, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value,
            description = COALESCE(EXCLUDED.description, settings.description), updated_at = EXCLUDED.updated_at
        RETURNING ` + settingColumns
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, query, uuid.NewString(), key, req.Value, req.Description, now); err != nil {
		return nil, fmt.Errorf("upsert setting: %w", err)
	}
	return &setting, nil
}
