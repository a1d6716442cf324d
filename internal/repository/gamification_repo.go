package repository

import (
	"errors"
	"fmt"

	"crolars/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict means the row changed between load and save
var ErrVersionConflict = errors.New("gamification state was modified concurrently")

type GamificationRepository interface {
	// FindByUserID loads state with badges and earned achievements. A user
	// with no row yet gets a fresh, unsaved record.
	FindByUserID(userID string) (*model.UserGamification, error)
	// Save persists state with an optimistic version check and inserts any
	// badges/achievements not stored yet
	Save(user *model.UserGamification) error
	TopByTotalXP(limit int) ([]model.UserGamification, error)
}

type gamificationRepository struct {
	db *gorm.DB
}

func NewGamificationRepository(db *gorm.DB) GamificationRepository {
	return &gamificationRepository{db: db}
}

func (r *gamificationRepository) FindByUserID(userID string) (*model.UserGamification, error) {
	var user model.UserGamification
	err := r.db.
		Preload("Badges", func(db *gorm.DB) *gorm.DB { return db.Order("earned_at ASC") }).
		Preload("Badges.Badge").
		Preload("Achievements", "earned = ?", true).
		Preload("Achievements.Achievement").
		Where("user_id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewUserGamification(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gamificationRepository) Save(user *model.UserGamification) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if user.Version == 0 {
			fresh := *user
			fresh.Badges = nil
			fresh.Achievements = nil
			fresh.Version = 1
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Select("*").Omit("Badges", "Achievements").Create(&fresh)
			if result.Error != nil {
				return fmt.Errorf("failed to create gamification state: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrVersionConflict
			}
		} else {
			result := tx.Model(&model.UserGamification{}).
				Where("user_id = ? AND version = ?", user.UserID, user.Version).
				Updates(map[string]interface{}{
					"xp":                   user.XP,
					"total_xp":             user.TotalXP,
					"level":                user.Level,
					"crolars":              user.Crolars,
					"streak_current":       user.StreakCurrent,
					"streak_longest":       user.StreakLongest,
					"streak_last_activity": user.StreakLastActivity,
					"version":              user.Version + 1,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to update gamification state: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrVersionConflict
			}
		}

		for i := range user.Badges {
			badge := user.Badges[i]
			badge.Badge = nil
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Badge").Create(&badge).Error; err != nil {
				return fmt.Errorf("failed to store badge %s: %w", badge.BadgeName, err)
			}
		}

		for i := range user.Achievements {
			earned := user.Achievements[i]
			if !earned.Earned {
				continue
			}
			earned.Achievement = model.Achievement{}
			// conflicts resolve on (user_id, achievement_id) only
			earned.ID = ""
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"earned", "earned_date"}),
				Where:     clause.Where{Exprs: []clause.Expression{clause.Eq{Column: "user_achievements.earned", Value: false}}},
			}).Omit("Achievement").Create(&earned).Error
			if err != nil {
				return fmt.Errorf("failed to store achievement %s: %w", earned.AchievementID, err)
			}
		}

		user.Version++
		return nil
	})
}

func (r *gamificationRepository) TopByTotalXP(limit int) ([]model.UserGamification, error) {
	var users []model.UserGamification
	err := r.db.Order("total_xp DESC").Limit(limit).Find(&users).Error
	return users, err
}
