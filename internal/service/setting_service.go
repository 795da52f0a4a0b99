package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

type settingRepository interface {
	List(ctx context.Context) ([]models.Setting, error)
	FindByKey(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key string, req models.SettingRequest) (*models.Setting, error)
}

// SettingService exposes site settings read by the public front-end.
type SettingService struct {
	repo      settingRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingService constructs a SettingService.
func NewSettingService(repo settingRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SettingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns every setting.
func (s *SettingService) List(ctx context.Context) ([]models.Setting, bool, error) {
	return Cached(ctx, s.cache, s.cache.Key(CacheGroupSettings, "all"), func() ([]models.Setting, error) {
		settings, err := s.repo.List(ctx)
		if err != nil {
			return nil, storeError(err, "failed to list settings")
		}
		if settings == nil {
			settings = []models.Setting{}
		}
		return settings, nil
	})
}

// Get returns one setting by key.
func (s *SettingService) Get(ctx context.Context, key string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	setting, _, err := Cached(ctx, s.cache, s.cache.Key(CacheGroupSettings, "key", key), func() (*models.Setting, error) {
		setting, err := s.repo.FindByKey(ctx, key)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
			}
			return nil, storeError(err, "failed to load setting")
		}
		return setting, nil
	})
	return setting, err
}

// Upsert creates or replaces a setting value.
func (s *SettingService) Upsert(ctx context.Context, key string, req models.SettingRequest) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if err := s.validator.Var(key, "required,max=100,printascii"); err != nil {
		return nil, validationError(err, "invalid setting key")
	}
	if strings.ContainsAny(key, " \t/*") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid setting key")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "value is required")
	}
	raw := bytes.TrimSpace(req.Value)
	if bytes.Equal(raw, []byte("null")) || !json.Valid(raw) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "value must be a JSON value")
	}
	req.Value = raw
	req.Description = trimmed(req.Description)

	setting, err := s.repo.Upsert(ctx, key, req)
	if err != nil {
		return nil, storeError(err, "failed to save setting")
	}
	s.cache.Invalidate(ctx, CacheGroupSettings)
	s.logger.Info("setting saved", zap.String("key", key))
	return setting, nil
}
