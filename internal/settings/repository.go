package settings

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Get returns nil when the user has never saved settings.
	Get(ctx context.Context, email string) (*UserSettings, error)
	Upsert(ctx context.Context, s *UserSettings) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Get(ctx context.Context, email string) (*UserSettings, error) {
	var s UserSettings
	err := r.db.WithContext(ctx).Where("user_email = ?", email).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &s, nil
}

func (r *gormRepository) Upsert(ctx context.Context, s *UserSettings) error {
	if s.ID != 0 {
		if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		return nil
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_email"}},
		DoUpdates: clause.AssignmentColumns([]string{"email_notifications", "push_notifications", "two_factor_auth", "updated_at"}),
	}).Create(s).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
