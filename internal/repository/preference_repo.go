package repository

import (
	"errors"

	"crolars/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository interface {
	FindByUserID(userID string) (*model.NotificationPreference, error)
	Upsert(pref *model.NotificationPreference) error
}

type preferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

// FindByUserID returns the stored preferences or the all-enabled defaults
func (r *preferenceRepository) FindByUserID(userID string) (*model.NotificationPreference, error) {
	var pref model.NotificationPreference
	err := r.db.Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultNotificationPreference(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Upsert writes every toggle, including false values
func (r *preferenceRepository) Upsert(pref *model.NotificationPreference) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "push", "social", "academic", "gamification", "marketplace", "system", "updated_at",
		}),
	}).Select("*").Create(pref).Error
}
